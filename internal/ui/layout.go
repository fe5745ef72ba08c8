package ui

import (
	"fmt"
	"slices"

	"github.com/rivo/tview"
)

// Layout stacks the named screens above the status bar. It implements the
// screen switcher used by the focus and help commands.
type Layout struct {
	*tview.Flex
	pages   *tview.Pages
	screens map[string]tview.Primitive
	order   []string
	current string
	focus   func(tview.Primitive)
}

func NewLayout(status tview.Primitive) *Layout {
	l := &Layout{
		pages:   tview.NewPages(),
		screens: make(map[string]tview.Primitive),
	}
	l.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(l.pages, 0, 1, true).
		AddItem(status, 1, 0, false)
	return l
}

// SetFocusFunc sets the function used to move keyboard focus to the
// visible screen.
func (l *Layout) SetFocusFunc(fn func(tview.Primitive)) {
	l.focus = fn
}

func (l *Layout) AddScreen(name string, p tview.Primitive) {
	if _, ok := l.screens[name]; !ok {
		l.order = append(l.order, name)
	}
	l.screens[name] = p
	l.pages.AddPage(name, p, true, false)
}

func (l *Layout) HasScreen(name string) bool {
	_, ok := l.screens[name]
	return ok
}

func (l *Layout) Screens() []string { return slices.Clone(l.order) }

func (l *Layout) Current() string { return l.current }

func (l *Layout) SetScreen(name string) error {
	p, ok := l.screens[name]
	if !ok {
		return fmt.Errorf("unknown screen %q", name)
	}
	l.current = name
	l.pages.SwitchToPage(name)
	if l.focus != nil {
		l.focus(p)
	}
	return nil
}
