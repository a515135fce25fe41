package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every grid binding. It implements help.KeyMap.
type KeyMap struct {
	Up, Down, Left, Right key.Binding

	Launch     key.Binding
	Search     key.Binding
	Pin        key.Binding
	Group      key.Binding
	NextGroup  key.Binding
	PrevGroup  key.Binding
	MoveLeft   key.Binding
	MoveRight  key.Binding
	ResetOrder key.Binding
	Rescan     key.Binding
	Mode       key.Binding
	News       key.Binding
	NewsTab    key.Binding
	Nav        key.Binding
	Stop       key.Binding
	StopAll    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),

		Launch:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Pin:        key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pin")),
		Group:      key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "set group")),
		NextGroup:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next group")),
		PrevGroup:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev group")),
		MoveLeft:   key.NewBinding(key.WithKeys("<", ","), key.WithHelp("<", "move left")),
		MoveRight:  key.NewBinding(key.WithKeys(">", "."), key.WithHelp(">", "move right")),
		ResetOrder: key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "reset order")),
		Rescan:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		Mode:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mode")),
		News:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "news")),
		NewsTab:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "news category")),
		Nav:        key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "sidebar")),
		Stop:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		StopAll:    key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "stop recommended")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Launch, k.Search, k.Pin, k.NextGroup, k.News, k.Mode, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Launch, k.Search, k.Pin, k.Group},
		{k.NextGroup, k.PrevGroup, k.MoveLeft, k.MoveRight, k.ResetOrder},
		{k.Stop, k.StopAll, k.Rescan, k.Mode},
		{k.News, k.NewsTab, k.Nav, k.Help, k.Quit},
	}
}
