package glutbridge

// Callback is the address of a C function provided by the engine (for
// example the display function); zero means "unset".
type Callback uintptr

// Host implements the windowing API the shim forwards to.
type Host interface {
	MainLoopEvent()
	Init(args []string)
	InitDisplayMode(mode uint32)
	CreateWindow(title string) int
	DestroyWindow(window int)
	PostRedisplay()
	SwapBuffers()
	GetWindow() int
	SetWindow(window int)
	ReshapeWindow(width, height int)
	DisplayFunc(cb Callback)
	ReshapeFunc(cb Callback)
	TimerFunc(msecs uint32, cb Callback, value int)
	Get(state uint32) int
	KeyboardFunc(cb Callback)
	MouseFunc(cb Callback)
	MouseWheelFunc(cb Callback)
	SetWindowTitle(title string)
	IdleFunc(cb Callback)
	InitWindowSize(width, height int)
	GetModifiers() int
}
