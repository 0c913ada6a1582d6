package glutbridge

import (
	"fmt"
)

// RegistrationPrefix is prepended to an entry point name to get the
// name of the shim's registration symbol.
const RegistrationPrefix = "reg_fn_"

// EntryPoint is a windowing function the shim expects the host to
// provide.
type EntryPoint struct {
	Name      string
	Signature Signature

	// Func is the Go implementation exported to the shim; it must satisfy
	// Signature.Check.
	Func any
}

func (ep EntryPoint) RegistrationSymbol() string {
	return RegistrationPrefix + ep.Name
}

func (ep EntryPoint) Validate() error {
	if ep.Name == "" {
		return fmt.Errorf("entry point with an empty name")
	}
	if err := ep.Signature.Check(ep.Func); err != nil {
		return fmt.Errorf("entry point '%s': %w", ep.Name, err)
	}
	return nil
}

// EntryPoints returns the fixed table of windowing entry points bound to
// the host, in registration order.
func EntryPoints(h Host) []EntryPoint {
	return []EntryPoint{
		{
			Name:      "glutMainLoopEvent",
			Signature: sig(KindVoid),
			Func:      func() { h.MainLoopEvent() },
		},
		{
			Name:      "glutInit",
			Signature: sig(KindVoid, KindIntPtr, KindStrings),
			Func:      func(argcp, argv uintptr) { h.Init(goStrings(argcp, argv)) },
		},
		{
			Name:      "glutInitDisplayMode",
			Signature: sig(KindVoid, KindUint),
			Func:      func(mode uint32) { h.InitDisplayMode(mode) },
		},
		{
			Name:      "glutCreateWindow",
			Signature: sig(KindInt, KindString),
			Func:      func(title uintptr) int32 { return int32(h.CreateWindow(goString(title))) },
		},
		{
			Name:      "glutDestroyWindow",
			Signature: sig(KindVoid, KindInt),
			Func:      func(window int32) { h.DestroyWindow(int(window)) },
		},
		{
			Name:      "glutPostRedisplay",
			Signature: sig(KindVoid),
			Func:      func() { h.PostRedisplay() },
		},
		{
			Name:      "glutSwapBuffers",
			Signature: sig(KindVoid),
			Func:      func() { h.SwapBuffers() },
		},
		{
			Name:      "glutGetWindow",
			Signature: sig(KindInt),
			Func:      func() int32 { return int32(h.GetWindow()) },
		},
		{
			Name:      "glutSetWindow",
			Signature: sig(KindVoid, KindInt),
			Func:      func(window int32) { h.SetWindow(int(window)) },
		},
		{
			Name:      "glutReshapeWindow",
			Signature: sig(KindVoid, KindInt, KindInt),
			Func:      func(width, height int32) { h.ReshapeWindow(int(width), int(height)) },
		},
		{
			Name:      "glutDisplayFunc",
			Signature: sig(KindVoid, KindCallback),
			Func:      func(cb uintptr) { h.DisplayFunc(Callback(cb)) },
		},
		{
			Name:      "glutReshapeFunc",
			Signature: sig(KindVoid, KindCallback),
			Func:      func(cb uintptr) { h.ReshapeFunc(Callback(cb)) },
		},
		{
			Name:      "glutTimerFunc",
			Signature: sig(KindVoid, KindUint, KindCallback, KindInt),
			Func: func(msecs uint32, cb uintptr, value int32) {
				h.TimerFunc(msecs, Callback(cb), int(value))
			},
		},
		{
			Name:      "glutGet",
			Signature: sig(KindInt, KindUint),
			Func:      func(state uint32) int32 { return int32(h.Get(state)) },
		},
		{
			Name:      "glutKeyboardFunc",
			Signature: sig(KindVoid, KindCallback),
			Func:      func(cb uintptr) { h.KeyboardFunc(Callback(cb)) },
		},
		{
			Name:      "glutMouseFunc",
			Signature: sig(KindVoid, KindCallback),
			Func:      func(cb uintptr) { h.MouseFunc(Callback(cb)) },
		},
		{
			Name:      "glutMouseWheelFunc",
			Signature: sig(KindVoid, KindCallback),
			Func:      func(cb uintptr) { h.MouseWheelFunc(Callback(cb)) },
		},
		{
			Name:      "glutSetWindowTitle",
			Signature: sig(KindVoid, KindString),
			Func:      func(title uintptr) { h.SetWindowTitle(goString(title)) },
		},
		{
			Name:      "glutIdleFunc",
			Signature: sig(KindVoid, KindCallback),
			Func:      func(cb uintptr) { h.IdleFunc(Callback(cb)) },
		},
		{
			Name:      "glutInitWindowSize",
			Signature: sig(KindVoid, KindInt, KindInt),
			Func:      func(width, height int32) { h.InitWindowSize(int(width), int(height)) },
		},
		{
			Name:      "glutGetModifiers",
			Signature: sig(KindInt),
			Func:      func() int32 { return int32(h.GetModifiers()) },
		},
	}
}
