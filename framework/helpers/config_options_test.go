package helpers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type widget struct {
	name  string
	count int
}

func withName(name string) ConfigOption[widget] {
	return OptionFunc[widget](func(w *widget) error {
		w.name = name
		return nil
	})
}

func TestApplyOptionsRunsInOrder(t *testing.T) {
	var w widget
	var increment ConfigOption[widget] = OptionFunc[widget](func(w *widget) error {
		w.count++
		return nil
	})
	err := ApplyOptions(&w, withName("a"), withName("b"), increment)
	assert.NoError(t, err)
	assert.Equal(t, widget{name: "b", count: 1}, w)
}

func TestApplyOptionsStopsAtFirstError(t *testing.T) {
	var w widget
	fail := errors.New("bad option")
	var failing ConfigOption[widget] = OptionFunc[widget](func(*widget) error { return fail })
	err := ApplyOptions(&w, failing, withName("never"))
	assert.Equal(t, fail, err)
	assert.Equal(t, "", w.name)
}

func TestApplyOptionsSkipsNil(t *testing.T) {
	var w widget
	assert.NoError(t, ApplyOptions(&w, nil, withName("x")))
	assert.Equal(t, "x", w.name)
}
