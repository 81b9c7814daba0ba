// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import "fmt"

// Service is a consumer of the transport once a service name has been
// negotiated, spec.md §4.5 Component E. Authentication and connection
// protocols (RFC 4252/4254) are out of scope (spec.md Non-goals); this
// is the seam a caller plugs either into.
type Service interface {
	// Name is the RFC 4253 §10 service name this Service answers to,
	// e.g. "ssh-userauth" or "ssh-connection".
	Name() string
	// Handle processes one payload already known to belong to this
	// service (messageType is payload[0]).
	Handle(messageType byte, payload []byte) error
	// NotifyError is called once, with the terminal error, when the
	// transport can no longer deliver packets to this service.
	NotifyError(err error)
}

// ServiceDispatcher drives the SSH_MSG_SERVICE_REQUEST / SERVICE_ACCEPT
// exchange and then hands every subsequent payload to the accepted
// Service, spec.md §4.5.
type ServiceDispatcher struct {
	t      *Transport
	active Service
}

func newServiceDispatcher(t *Transport) *ServiceDispatcher {
	return &ServiceDispatcher{t: t}
}

// RequestService sends SSH_MSG_SERVICE_REQUEST for name and blocks for
// the server's SSH_MSG_SERVICE_ACCEPT, spec.md §4.5 / RFC 4253 §10.
func (d *ServiceDispatcher) RequestService(name string) error {
	d.t.state.set(stateServiceReq, nil)
	if err := d.t.writePacket(marshal(msgServiceRequest, serviceRequestMsg{Service: name})); err != nil {
		// A write failure already drives readLoop to stateError/stateStopped
		// on its own, so there's no terminal transition to force here.
		return err
	}

	packet, err := d.t.readPacket()
	if err != nil {
		return err
	}
	switch packet[0] {
	case msgServiceAccept:
		var accept serviceAcceptMsg
		if err := unmarshalBody(packet[1:], &accept); err != nil {
			d.t.state.set(stateError, err)
			return err
		}
		if accept.Service != name {
			err := fmt.Errorf("%w: service accept name mismatch: got %q want %q", ErrProtocol, accept.Service, name)
			d.t.state.set(stateError, err)
			return err
		}
		d.t.state.set(stateService, nil)
		return nil
	case msgDisconnect:
		var dm disconnectMsg
		err := fmt.Errorf("ssh: disconnected by peer")
		if unmarshalErr := unmarshalBody(packet[1:], &dm); unmarshalErr == nil {
			err = fmt.Errorf("ssh: disconnected by peer (reason %d): %s", dm.Reason, dm.Message)
		}
		d.t.state.set(stateError, err)
		return err
	default:
		err := unexpectedMessageError(msgServiceAccept, packet[0])
		d.t.state.set(stateError, err)
		return err
	}
}

// Run hands every transport payload to svc until the transport stops
// or svc returns an error from Handle. It blocks; callers typically
// run it in its own goroutine.
func (d *ServiceDispatcher) Run(svc Service) error {
	// spec.md §5: a service consumer only makes sense once the
	// transport has actually reached SERVICE; block on the state
	// condition variable rather than racing RequestService's caller.
	if err := d.t.state.awaitState(stateService); err != nil {
		svc.NotifyError(err)
		return err
	}
	d.active = svc
	for {
		payload, err := d.t.readPacket()
		if err != nil {
			svc.NotifyError(err)
			return err
		}
		if err := svc.Handle(payload[0], payload); err != nil {
			svc.NotifyError(err)
			return err
		}
	}
}

// Active returns the Service currently bound by Run, or nil.
func (d *ServiceDispatcher) Active() Service { return d.active }
