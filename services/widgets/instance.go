package widgets

import (
	"context"
	"errors"
	"sync"

	"meridian/models"
)

var (
	ErrConfirmInProgress    = errors.New("widget: confirmation already in progress")
	ErrMismatchedInvocation = errors.New("widget: invocation belongs to another tool call")
	ErrNotInteractive       = errors.New("widget: no interactive result to act on")
	ErrUnknownSlot          = errors.New("widget: unknown slot")
	ErrSlotUnavailable      = errors.New("widget: slot is not available")
	ErrNothingSelected      = errors.New("widget: no slot selected")
	ErrAlreadyConfirmed     = errors.New("widget: booking already confirmed")
)

// Instance is the rendering state machine for one tool invocation. It
// only moves forward: skeleton, then result or failed.
type Instance struct {
	mu       sync.Mutex
	resolver Resolver
	onAction ActionHandler

	inv        models.ToolInvocation
	state      State
	selected   string
	confirming bool
	confirmed  bool
}

func NewInstance(r Resolver, toolCallID, toolName string, onAction ActionHandler) *Instance {
	return &Instance{
		resolver: r,
		onAction: onAction,
		inv: models.ToolInvocation{
			ToolCallID: toolCallID,
			ToolName:   toolName,
			State:      models.StatePartialCall,
		},
		state: StateSkeleton,
	}
}

// FromInvocation builds an instance already caught up with inv.
func FromInvocation(r Resolver, inv models.ToolInvocation, onAction ActionHandler) *Instance {
	i := NewInstance(r, inv.ToolCallID, inv.ToolName, onAction)
	_ = i.Apply(inv)
	return i
}

// Apply feeds an invocation update. Updates older than the current state
// are ignored.
func (i *Instance) Apply(inv models.ToolInvocation) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if inv.ToolCallID != i.inv.ToolCallID {
		return ErrMismatchedInvocation
	}
	if i.inv.State == models.StateResult || inv.State.Rank() < i.inv.State.Rank() {
		return nil
	}

	if inv.ToolName == "" {
		inv.ToolName = i.inv.ToolName
	}
	i.inv = inv
	switch {
	case inv.Failed():
		i.state = StateFailed
	case inv.State == models.StateResult:
		i.state = StateResult
	default:
		i.state = StateSkeleton
	}
	return nil
}

// Run applies updates until the channel closes or ctx ends.
func (i *Instance) Run(ctx context.Context, updates <-chan models.ToolInvocation) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case inv, ok := <-updates:
			if !ok {
				return nil
			}
			if err := i.Apply(inv); err != nil {
				return err
			}
		}
	}
}

func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Instance) Invocation() models.ToolInvocation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.inv
}

// View renders the current state.
func (i *Instance) View() View {
	i.mu.Lock()
	defer i.mu.Unlock()

	pair, known := Pair{}, false
	if i.resolver != nil {
		pair, known = i.resolver.Resolve(i.inv.ToolName)
	}

	var v View
	switch {
	case i.resolver != nil && !known && i.state != StateSkeleton:
		// Unregistered tools get a neutral notice, failed or not.
		v = Unavailable(i.inv.ToolName)
	case i.state == StateSkeleton:
		if known && pair.Skeleton != nil {
			v = pair.Skeleton.Render()
		} else {
			v = spinner(i.inv.ToolName)
		}
	case i.state == StateFailed:
		v = failedView(i.inv.Error)
	case i.state == StateResult:
		if !known || pair.Component == nil {
			v = Unavailable(i.inv.ToolName)
			break
		}
		rendered, err := pair.Component.Render(i.inv.Result)
		if err != nil {
			v = failedView(&models.ToolError{Type: "render_failed", Message: err.Error()})
			break
		}
		v = rendered
		if i.selected != "" {
			v.Selection = i.selected
		}
		v.Confirmed = i.confirmed
	}
	if v.Title == "" && v.Kind != KindNotice {
		v.Title = pair.Title
	}
	v.ToolCallID = i.inv.ToolCallID
	v.ToolName = i.inv.ToolName
	return v
}

func failedView(te *models.ToolError) View {
	v := View{
		Kind:    KindError,
		State:   StateFailed,
		Title:   "No se pudo completar la acción",
		Actions: []string{ActionRetry},
	}
	if te != nil {
		v.Message = te.Message
		v.Data = te
	}
	return v
}

// Booking returns the booking payload once a result is in.
func (i *Instance) Booking() (models.AmenityBookingData, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.bookingLocked()
}

func (i *Instance) bookingLocked() (models.AmenityBookingData, bool) {
	if i.state != StateResult {
		return models.AmenityBookingData{}, false
	}
	data, err := DecodeBookingData(i.inv.Result)
	if err != nil {
		return models.AmenityBookingData{}, false
	}
	return data, true
}

// SelectSlot marks an available slot as chosen. Local state only.
func (i *Instance) SelectSlot(id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.confirmed {
		return ErrAlreadyConfirmed
	}
	if i.confirming {
		return ErrConfirmInProgress
	}
	data, ok := i.bookingLocked()
	if !ok {
		return ErrNotInteractive
	}
	slot, ok := data.Slot(id)
	if !ok {
		return ErrUnknownSlot
	}
	if !slot.Available {
		return ErrSlotUnavailable
	}
	i.selected = id
	return nil
}

// Confirm emits BOOKING_CONFIRMED for the selected slot to the host. Only
// one confirmation can be in flight; the handler runs without the lock.
func (i *Instance) Confirm() (Action, error) {
	i.mu.Lock()
	switch {
	case i.confirmed:
		i.mu.Unlock()
		return Action{}, ErrAlreadyConfirmed
	case i.confirming:
		i.mu.Unlock()
		return Action{}, ErrConfirmInProgress
	case i.selected == "":
		i.mu.Unlock()
		return Action{}, ErrNothingSelected
	}
	data, ok := i.bookingLocked()
	if !ok {
		i.mu.Unlock()
		return Action{}, ErrNotInteractive
	}
	slot, _ := data.Slot(i.selected)
	action := Action{
		ToolCallID: i.inv.ToolCallID,
		Type:       ActionBookingConfirmed,
		Payload: BookingConfirmedPayload{
			AmenityType: data.AmenityType,
			Date:        data.Date,
			Slot:        slot,
		},
	}
	handler := i.onAction
	i.confirming = true
	i.mu.Unlock()

	var err error
	if handler != nil {
		err = handler(action)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.confirming = false
	if err != nil {
		return Action{}, err
	}
	i.confirmed = true
	return action, nil
}
