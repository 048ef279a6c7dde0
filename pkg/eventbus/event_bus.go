// Package eventbus is a synchronous in-process pub/sub. Handlers subscribe as
// plain functions; Publish invokes every handler whose signature matches the
// published arguments, on the publishing goroutine.
package eventbus

import (
	"reflect"

	"github.com/sirupsen/logrus"
)

type EventBus interface {
	Publish(args ...any)
	Subscribe(handler any)
	Unsubscribe(handler any)
	SubscribersCount() int
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisher{log: log}
}

type publisher struct {
	log      *logrus.Logger
	handlers []any
}

// MatchSignature reports whether handler is a func whose parameters accept
// args positionally. Interface parameters match any implementation; nil args
// match pointer and interface parameters.
func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t.Kind() != reflect.Func {
		return false
	}
	if t.NumIn() != len(args) {
		return false
	}

	for i, arg := range args {
		param := t.In(i)
		if arg == nil {
			if param.Kind() != reflect.Interface && param.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		argType := reflect.TypeOf(arg)
		if param.Kind() == reflect.Interface {
			if !argType.Implements(param) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(param) {
			return false
		}
	}
	return true
}

func (p *publisher) Publish(args ...any) {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}

	handled := false
	for _, handler := range p.handlers {
		if !MatchSignature(handler, args) {
			continue
		}
		p.call(reflect.ValueOf(handler), in)
		handled = true
	}

	if !handled && p.log != nil {
		p.log.Warnf("eventbus.Publish: no matching subscribers for event with args: %v", in)
	}
}

// A panicking handler must not take down the publisher or the handlers
// queued after it.
func (p *publisher) call(v reflect.Value, in []reflect.Value) {
	defer func() {
		if r := recover(); r != nil && p.log != nil {
			p.log.Errorf("eventbus: handler %s panicked: %v", v.Type(), r)
		}
	}()
	v.Call(in)
}

func (p *publisher) Subscribe(handler any) {
	if reflect.TypeOf(handler).Kind() != reflect.Func {
		panic("eventbus: handler must be a function")
	}
	p.handlers = append(p.handlers, handler)
}

func (p *publisher) Unsubscribe(handler any) {
	target := reflect.ValueOf(handler).Pointer()
	for i, h := range p.handlers {
		if reflect.ValueOf(h).Pointer() == target {
			p.handlers = append(p.handlers[:i], p.handlers[i+1:]...)
			return
		}
	}
}

func (p *publisher) SubscribersCount() int {
	return len(p.handlers)
}
