package domain

// Navigator abstracts the current view of a browser and moves it elsewhere.
type Navigator interface {
	CurrentView() string
	Redirect(target string)
}
