package testutil

import (
	"context"
	"fmt"
	"sync"

	"staybid/internal/events"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"
)

// Catalog serves a fixed set of units.
type Catalog struct {
	Units []model.Unit
}

func (c *Catalog) FindByUID(_ context.Context, uid string) (*model.Unit, error) {
	for _, u := range c.Units {
		if u.UID == uid {
			cp := u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFoundWithID("Unit", uid)
}

func (c *Catalog) FindByID(_ context.Context, id int64) (*model.Unit, error) {
	for _, u := range c.Units {
		if u.ID == id {
			cp := u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFoundWithID("Unit", fmt.Sprint(id))
}

// Unit is the villa most tests book: base price 1,000,000 VND a night.
func Unit() model.Unit {
	return model.Unit{
		ID:           1,
		UID:          "villa-1",
		Name:         "Sea View Villa",
		BasePrice:    1_000_000,
		Currency:     "VND",
		ProvinceCode: "79",
		DistrictCode: "760",
	}
}

// Parameters returns P, or Err when set.
type Parameters struct {
	P   model.Parameters
	Err error
}

func NewParameters() *Parameters {
	return &Parameters{P: model.DefaultParameters()}
}

func (p *Parameters) GetParameters(context.Context) (model.Parameters, error) {
	if p.Err != nil {
		return model.Parameters{}, p.Err
	}
	return p.P, nil
}

// Recorder keeps every published event.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *Recorder) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *Recorder) Count(eventType string) int {
	n := 0
	for _, t := range r.Types() {
		if t == eventType {
			n++
		}
	}
	return n
}
