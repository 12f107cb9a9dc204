// Package widgets turns tool invocations into renderable views and drives
// the per-invocation rendering state machine.
package widgets

// State of a widget instance.
type State string

const (
	StateSkeleton State = "skeleton"
	StateResult   State = "result"
	StateFailed   State = "failed"
)

// View kinds understood by the front-end.
const (
	KindSpinner        = "spinner"
	KindNotice         = "notice"
	KindError          = "error"
	KindAmenitySkel    = "amenity_booking_skeleton"
	KindAmenityBooking = "amenity_booking"
)

// View is the serialisable description of what a widget currently shows.
type View struct {
	ToolCallID string   `json:"toolCallId,omitempty"`
	ToolName   string   `json:"toolName,omitempty"`
	Kind       string   `json:"kind"`
	State      State    `json:"state"`
	Title      string   `json:"title,omitempty"`
	Message    string   `json:"message,omitempty"`
	Data       any      `json:"data,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	Selection  string   `json:"selection,omitempty"`
	Confirmed  bool     `json:"confirmed,omitempty"`
}

// Component renders a completed tool result.
type Component interface {
	Render(payload any) (View, error)
}

// Skeleton renders the placeholder shown while a tool is still running.
type Skeleton interface {
	Render() View
}

// Pair is the renderer couple registered for one tool.
type Pair struct {
	Component Component
	Skeleton  Skeleton
	Title     string // fallback view title
}

// Resolver maps a tool name to its renderers. Unknown names report false.
type Resolver interface {
	Resolve(toolName string) (Pair, bool)
}

// Unavailable is the neutral notice shown for tools without renderers.
func Unavailable(toolName string) View {
	return View{
		ToolName: toolName,
		Kind:     KindNotice,
		State:    StateResult,
		Message:  "Widget no disponible: " + toolName,
	}
}

func spinner(toolName string) View {
	return View{ToolName: toolName, Kind: KindSpinner, State: StateSkeleton}
}
