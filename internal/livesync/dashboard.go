package livesync

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

// SyncWarning replaces a failed background refresh; the last loaded data stays on screen.
const SyncWarning = "Live updates are delayed. Showing the last loaded data."

type EntityKind string

const (
	EntityBooking    EntityKind = "booking"
	EntityWaiver     EntityKind = "waiver"
	EntityMembership EntityKind = "membership"
)

type Datasets struct {
	Summary     types.AdminSummary
	Bookings    []types.AdminBooking
	Waivers     []types.AdminWaiver
	Tickets     []types.AdminTicket
	Memberships []types.AdminMembership
}

// EditForm is the working copy of the selected entity.
type EditForm struct {
	Kind   EntityKind
	ID     string
	Values map[string]string
	Dirty  bool
}

func (f *EditForm) clone() *EditForm {
	if f == nil {
		return nil
	}
	cpy := *f
	cpy.Values = make(map[string]string, len(f.Values))
	for k, v := range f.Values {
		cpy.Values[k] = v
	}
	return &cpy
}

// State is a snapshot for rendering. Dataset slices are shared and must not
// be modified.
type State struct {
	Data        Datasets
	Loaded      bool
	Loading     bool
	LoadError   error
	SyncWarning string
	Connection  Status
	Form        *EditForm
	RefreshedAt time.Time
}

type Options struct {
	Source   Source
	Logger   *logger.Logger
	Window   time.Duration
	Clock    func() time.Time
	OnChange func(State)
}

// Dashboard keeps the back-office datasets current. Pushed events coalesce
// into silent refetches; the newest issued refresh that succeeds wins.
type Dashboard struct {
	source   Source
	logger   *logger.Logger
	now      func() time.Time
	onChange func(State)

	debouncer *Debouncer
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.Mutex
	state   State
	issued  uint64
	applied uint64
	stream  *Stream
}

func NewDashboard(opts Options) (*Dashboard, error) {
	if opts.Source == nil {
		return nil, errors.New("dashboard source is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		source:   opts.Source,
		logger:   opts.Logger,
		now:      opts.Clock,
		onChange: opts.OnChange,
		ctx:      ctx,
		cancel:   cancel,
		state:    State{Connection: StatusDisconnected},
	}
	d.debouncer = NewDebouncer(opts.Window, func() { _ = d.Refresh(d.ctx, true) })
	return d, nil
}

func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

// Connect opens the admin event stream and feeds it into the debouncer.
func (d *Dashboard) Connect(opts StreamOptions) error {
	opts.OnEvent = d.HandleEvent
	opts.OnStatus = d.setConnection
	if opts.Logger == nil {
		opts.Logger = d.logger
	}
	stream, err := NewStream(opts)
	if err != nil {
		return err
	}
	d.mu.Lock()
	if d.stream != nil {
		d.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeConflict, "event stream already connected")
	}
	d.stream = stream
	d.mu.Unlock()
	stream.Start(d.ctx)
	return nil
}

// HandleEvent schedules a silent refetch for dashboard-relevant events.
func (d *Dashboard) HandleEvent(evt Event) {
	if !TriggersRefresh(evt.Type) {
		return
	}
	d.debouncer.Trigger()
}

// Refresh refetches every dataset in parallel. A failed visible refresh is
// recorded as LoadError and returned; a silent one only sets SyncWarning.
func (d *Dashboard) Refresh(ctx context.Context, silent bool) error {
	d.mu.Lock()
	d.issued++
	seq := d.issued
	if !silent {
		d.state.Loading = true
	}
	d.mu.Unlock()

	data, err := d.fetch(ctx)

	d.mu.Lock()
	if seq <= d.applied {
		d.mu.Unlock()
		return nil
	}
	if err != nil {
		if silent {
			d.state.SyncWarning = SyncWarning
		} else {
			d.state.LoadError = err
			d.state.Loading = false
		}
		state := d.snapshot()
		d.mu.Unlock()
		d.logger.Warn(d.logger.WithFields(ctx, map[string]any{"silent": silent, "error": err.Error()}), "dashboard refresh failed")
		d.emit(state)
		if silent {
			return nil
		}
		return err
	}
	d.applied = seq
	d.state.Data = data
	d.state.Loaded = true
	d.state.Loading = false
	d.state.LoadError = nil
	d.state.SyncWarning = ""
	d.state.RefreshedAt = d.now().UTC()
	if form := d.state.Form; form != nil && !form.Dirty {
		if values, ok := formValues(data, form.Kind, form.ID); ok {
			form.Values = values
		}
	}
	state := d.snapshot()
	d.mu.Unlock()
	d.emit(state)
	return nil
}

// Select opens the edit form for an entity present in the loaded data.
func (d *Dashboard) Select(kind EntityKind, id string) error {
	d.mu.Lock()
	values, ok := formValues(d.state.Data, kind, id)
	if !ok {
		d.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeNotFound, string(kind)+" not found").WithDetails(map[string]any{"id": id})
	}
	d.state.Form = &EditForm{Kind: kind, ID: id, Values: values}
	state := d.snapshot()
	d.mu.Unlock()
	d.emit(state)
	return nil
}

func (d *Dashboard) Deselect() {
	d.mu.Lock()
	d.state.Form = nil
	state := d.snapshot()
	d.mu.Unlock()
	d.emit(state)
}

// Edit changes one field of the open form and marks it dirty.
func (d *Dashboard) Edit(field, value string) error {
	d.mu.Lock()
	form := d.state.Form
	if form == nil {
		d.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "nothing is selected")
	}
	if _, ok := form.Values[field]; !ok || !editable(form.Kind, field) {
		d.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "field is not editable").WithDetails(map[string]any{"field": field})
	}
	form.Values[field] = value
	form.Dirty = true
	state := d.snapshot()
	d.mu.Unlock()
	d.emit(state)
	return nil
}

// Save sends the open form and clears its dirty flag on success.
func (d *Dashboard) Save(ctx context.Context) error {
	d.mu.Lock()
	form := d.state.Form.clone()
	d.mu.Unlock()
	if form == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "nothing is selected")
	}

	var err error
	switch form.Kind {
	case EntityBooking:
		var patch types.BookingPatch
		patch, err = bookingPatch(form.Values)
		if err == nil {
			err = d.source.UpdateBooking(ctx, form.ID, patch)
		}
	case EntityWaiver:
		err = d.source.UpdateWaiver(ctx, form.ID, waiverPatch(form.Values))
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "memberships have no editable fields")
	}
	if err != nil {
		return err
	}

	d.mu.Lock()
	if current := d.state.Form; current != nil && current.Kind == form.Kind && current.ID == form.ID {
		current.Dirty = false
	}
	d.mu.Unlock()
	d.debouncer.Trigger()
	return nil
}

// RecordVisit logs a membership check-in.
func (d *Dashboard) RecordVisit(ctx context.Context, membershipID string) error {
	if strings.TrimSpace(membershipID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "membership id is required")
	}
	if err := d.source.RecordVisit(ctx, membershipID); err != nil {
		return err
	}
	d.debouncer.Trigger()
	return nil
}

// Close stops the stream and any pending refetch.
func (d *Dashboard) Close() {
	d.debouncer.Stop()
	d.mu.Lock()
	stream := d.stream
	d.stream = nil
	d.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
	d.cancel()
}

func (d *Dashboard) fetch(ctx context.Context) (Datasets, error) {
	var out Datasets
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Summary, err = d.source.Summary(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Bookings, err = d.source.Bookings(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Waivers, err = d.source.Waivers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Tickets, err = d.source.Tickets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Memberships, err = d.source.Memberships(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Datasets{}, err
	}
	return out, nil
}

func (d *Dashboard) setConnection(status Status) {
	d.mu.Lock()
	d.state.Connection = status
	state := d.snapshot()
	d.mu.Unlock()
	d.emit(state)
}

// snapshot must be called with mu held.
func (d *Dashboard) snapshot() State {
	s := d.state
	s.Form = d.state.Form.clone()
	return s
}

func (d *Dashboard) emit(state State) {
	if d.onChange != nil {
		d.onChange(state)
	}
}

var editableFields = map[EntityKind]map[string]bool{
	EntityBooking: {"notes": true, "guests": true},
	EntityWaiver:  {"guardianName": true, "guardianEmail": true, "guardianPhone": true, "notes": true},
}

func editable(kind EntityKind, field string) bool {
	return editableFields[kind][field]
}

func formValues(data Datasets, kind EntityKind, id string) (map[string]string, bool) {
	switch kind {
	case EntityBooking:
		for _, b := range data.Bookings {
			if b.ID == id {
				return map[string]string{
					"reference": b.Reference,
					"status":    b.Status,
					"notes":     b.Notes,
					"guests":    strconv.Itoa(b.Guests),
				}, true
			}
		}
	case EntityWaiver:
		for _, w := range data.Waivers {
			if w.ID == id {
				return map[string]string{
					"guardianName":  w.GuardianName,
					"guardianEmail": w.GuardianEmail,
					"guardianPhone": w.GuardianPhone,
					"notes":         w.Notes,
				}, true
			}
		}
	case EntityMembership:
		for _, m := range data.Memberships {
			if m.ID == id {
				return map[string]string{
					"tierName":   m.TierName,
					"status":     m.Status,
					"visitsUsed": strconv.Itoa(m.VisitsUsed),
				}, true
			}
		}
	}
	return nil, false
}

func bookingPatch(values map[string]string) (types.BookingPatch, error) {
	notes := values["notes"]
	guests, err := strconv.Atoi(strings.TrimSpace(values["guests"]))
	if err != nil || guests < 1 {
		return types.BookingPatch{}, pkgerrors.New(pkgerrors.CodeValidation, "guests must be a positive number")
	}
	return types.BookingPatch{Notes: &notes, Guests: &guests}, nil
}

func waiverPatch(values map[string]string) types.WaiverPatch {
	name := values["guardianName"]
	email := values["guardianEmail"]
	phone := values["guardianPhone"]
	notes := values["notes"]
	return types.WaiverPatch{GuardianName: &name, GuardianEmail: &email, GuardianPhone: &phone, Notes: &notes}
}
