package glutbridge

import (
	"context"
	"sort"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/xsync"
)

// GLUT state constants understood by HeadlessHost.Get.
const (
	GLUTWindowX          = 100
	GLUTWindowY          = 101
	GLUTWindowWidth      = 102
	GLUTWindowHeight     = 103
	GLUTScreenWidth      = 200
	GLUTScreenHeight     = 201
	GLUTInitWindowWidth  = 502
	GLUTInitWindowHeight = 503
	GLUTElapsedTime      = 700
)

// Invoker calls an engine-provided callback.
type Invoker func(cb Callback, args ...uintptr)

type headlessWindow struct {
	Title  string
	Width  int
	Height int
}

type timer struct {
	Deadline time.Time
	Callback Callback
	Value    int
}

// HeadlessHost is a windowing stand-in without a display: it keeps the
// windowing state the engine asks for and dispatches the engine's
// display, reshape, timer and idle callbacks from MainLoopEvent.
type HeadlessHost struct {
	Invoke Invoker
	Now    func() time.Time

	ctx        context.Context
	locker     xsync.Mutex
	startedAt  time.Time
	args       []string
	mode       uint32
	initWidth  int
	initHeight int
	windows    map[int]*headlessWindow
	current    int
	nextWindow int
	redisplay  bool
	reshaped   bool
	timers     []timer
	display    Callback
	reshape    Callback
	keyboard   Callback
	mouse      Callback
	mouseWheel Callback
	idle       Callback
}

var _ Host = (*HeadlessHost)(nil)

func NewHeadlessHost(ctx context.Context) *HeadlessHost {
	h := &HeadlessHost{
		Invoke:     CallC,
		Now:        time.Now,
		ctx:        ctx,
		windows:    map[int]*headlessWindow{},
		nextWindow: 1,
		initWidth:  300,
		initHeight: 300,
	}
	h.startedAt = h.Now()
	return h
}

func (h *HeadlessHost) MainLoopEvent() {
	type call struct {
		cb   Callback
		args []uintptr
	}

	calls := xsync.DoR1(h.ctx, &h.locker, func() []call {
		var calls []call
		now := h.Now()
		if h.reshaped && h.reshape != 0 {
			if w := h.windows[h.current]; w != nil {
				calls = append(calls, call{h.reshape, []uintptr{uintptr(w.Width), uintptr(w.Height)}})
			}
		}
		h.reshaped = false
		if h.redisplay && h.display != 0 {
			calls = append(calls, call{cb: h.display})
		}
		h.redisplay = false

		var pending []timer
		for _, t := range h.timers {
			if now.Before(t.Deadline) {
				pending = append(pending, t)
				continue
			}
			calls = append(calls, call{t.Callback, []uintptr{uintptr(t.Value)}})
		}
		h.timers = pending

		if h.idle != 0 {
			calls = append(calls, call{cb: h.idle})
		}
		return calls
	})

	for _, c := range calls {
		h.Invoke(c.cb, c.args...)
	}
}

// Init stores the arguments and restarts the GLUT_ELAPSED_TIME clock.
func (h *HeadlessHost) Init(args []string) {
	logger.Debugf(h.ctx, "glutInit(%q)", args)
	h.locker.Do(h.ctx, func() {
		h.args = args
		h.startedAt = h.Now()
	})
}

func (h *HeadlessHost) Args() []string {
	return xsync.DoR1(h.ctx, &h.locker, func() []string {
		return h.args
	})
}

func (h *HeadlessHost) InitDisplayMode(mode uint32) {
	logger.Debugf(h.ctx, "glutInitDisplayMode(0x%X)", mode)
	h.locker.Do(h.ctx, func() {
		h.mode = mode
	})
}

func (h *HeadlessHost) CreateWindow(title string) int {
	return xsync.DoR1(h.ctx, &h.locker, func() int {
		id := h.nextWindow
		h.nextWindow++
		h.windows[id] = &headlessWindow{
			Title:  title,
			Width:  h.initWidth,
			Height: h.initHeight,
		}
		h.current = id
		h.reshaped = true
		h.redisplay = true
		logger.Infof(h.ctx, "created window #%d '%s' (%dx%d)", id, title, h.initWidth, h.initHeight)
		return id
	})
}

func (h *HeadlessHost) DestroyWindow(window int) {
	h.locker.Do(h.ctx, func() {
		if _, ok := h.windows[window]; !ok {
			logger.Warnf(h.ctx, "glutDestroyWindow: unknown window #%d", window)
			return
		}
		delete(h.windows, window)
		if h.current == window {
			h.current = 0
		}
		logger.Debugf(h.ctx, "destroyed window #%d", window)
	})
}

func (h *HeadlessHost) PostRedisplay() {
	h.locker.Do(h.ctx, func() {
		h.redisplay = true
	})
}

func (h *HeadlessHost) SwapBuffers() {
	logger.Tracef(h.ctx, "glutSwapBuffers")
}

func (h *HeadlessHost) GetWindow() int {
	return xsync.DoR1(h.ctx, &h.locker, func() int {
		return h.current
	})
}

func (h *HeadlessHost) SetWindow(window int) {
	h.locker.Do(h.ctx, func() {
		if _, ok := h.windows[window]; !ok {
			logger.Warnf(h.ctx, "glutSetWindow: unknown window #%d", window)
			return
		}
		h.current = window
	})
}

func (h *HeadlessHost) ReshapeWindow(width, height int) {
	h.locker.Do(h.ctx, func() {
		w := h.windows[h.current]
		if w == nil {
			logger.Warnf(h.ctx, "glutReshapeWindow: no current window")
			return
		}
		w.Width, w.Height = width, height
		h.reshaped = true
		h.redisplay = true
	})
}

func (h *HeadlessHost) DisplayFunc(cb Callback) {
	h.locker.Do(h.ctx, func() {
		h.display = cb
	})
}

func (h *HeadlessHost) ReshapeFunc(cb Callback) {
	h.locker.Do(h.ctx, func() {
		h.reshape = cb
	})
}

func (h *HeadlessHost) TimerFunc(msecs uint32, cb Callback, value int) {
	h.locker.Do(h.ctx, func() {
		h.timers = append(h.timers, timer{
			Deadline: h.Now().Add(time.Duration(msecs) * time.Millisecond),
			Callback: cb,
			Value:    value,
		})
		sort.SliceStable(h.timers, func(i, j int) bool {
			return h.timers[i].Deadline.Before(h.timers[j].Deadline)
		})
	})
}

func (h *HeadlessHost) Get(state uint32) int {
	return xsync.DoR1(h.ctx, &h.locker, func() int {
		w := h.windows[h.current]
		switch state {
		case GLUTWindowX, GLUTWindowY:
			return 0
		case GLUTWindowWidth, GLUTScreenWidth:
			if w == nil {
				return h.initWidth
			}
			return w.Width
		case GLUTWindowHeight, GLUTScreenHeight:
			if w == nil {
				return h.initHeight
			}
			return w.Height
		case GLUTInitWindowWidth:
			return h.initWidth
		case GLUTInitWindowHeight:
			return h.initHeight
		case GLUTElapsedTime:
			return int(h.Now().Sub(h.startedAt).Milliseconds())
		}
		logger.Warnf(h.ctx, "glutGet: unsupported state %d", state)
		return -1
	})
}

func (h *HeadlessHost) KeyboardFunc(cb Callback) {
	h.locker.Do(h.ctx, func() {
		h.keyboard = cb
	})
}

func (h *HeadlessHost) MouseFunc(cb Callback) {
	h.locker.Do(h.ctx, func() {
		h.mouse = cb
	})
}

func (h *HeadlessHost) MouseWheelFunc(cb Callback) {
	h.locker.Do(h.ctx, func() {
		h.mouseWheel = cb
	})
}

func (h *HeadlessHost) SetWindowTitle(title string) {
	h.locker.Do(h.ctx, func() {
		w := h.windows[h.current]
		if w == nil {
			logger.Warnf(h.ctx, "glutSetWindowTitle: no current window")
			return
		}
		w.Title = title
	})
}

func (h *HeadlessHost) IdleFunc(cb Callback) {
	h.locker.Do(h.ctx, func() {
		h.idle = cb
	})
}

func (h *HeadlessHost) InitWindowSize(width, height int) {
	logger.Debugf(h.ctx, "glutInitWindowSize(%d, %d)", width, height)
	h.locker.Do(h.ctx, func() {
		h.initWidth, h.initHeight = width, height
	})
}

// GetModifiers always reports no modifier keys: there is no input device.
func (h *HeadlessHost) GetModifiers() int {
	return 0
}

// HostCallbacks is a snapshot of the callbacks the engine installed.
type HostCallbacks struct {
	Display    Callback
	Reshape    Callback
	Keyboard   Callback
	Mouse      Callback
	MouseWheel Callback
	Idle       Callback
}

func (h *HeadlessHost) Callbacks() HostCallbacks {
	return xsync.DoR1(h.ctx, &h.locker, func() HostCallbacks {
		return HostCallbacks{
			Display:    h.display,
			Reshape:    h.reshape,
			Keyboard:   h.keyboard,
			Mouse:      h.mouse,
			MouseWheel: h.mouseWheel,
			Idle:       h.idle,
		}
	})
}
