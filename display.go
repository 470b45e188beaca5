package soundbank

// Display shows short-lived status text. Calls are fire-and-forget.
type Display interface {
	Show(msg string)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(msg string)

func (f DisplayFunc) Show(msg string) { f(msg) }

type nopDisplay struct{}

func (nopDisplay) Show(string) {}
