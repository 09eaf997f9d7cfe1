// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zigbee

import (
	"fmt"
	"time"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// StartJoin sets NJ, the time in seconds the node allows joining.
// xbee.JoinAlways keeps joining open.
func (s *Session) StartJoin(joinTime uint8) error {
	return s.set(xbee.CmdJoinTime, []byte{joinTime})
}

// AssociationIndication reads AI.
func (s *Session) AssociationIndication() (uint8, error) {
	r, err := s.SendAndWait(xbee.CmdAssociation, nil)
	if err != nil {
		return 0, err
	}
	if len(r.Data) < 1 {
		return 0, fmt.Errorf("%w: AI returned no data", ErrUnexpectedReply)
	}
	return r.Data[0], nil
}

// WaitAssociation polls AI every PollInterval while the module reports
// xbee.AssociationScanning and returns the first other code. A positive
// maxWait bounds the wait with ErrAssociationTimeout; zero waits forever.
func (s *Session) WaitAssociation(maxWait time.Duration) (uint8, error) {
	var deadline time.Time
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}

	for {
		code, err := s.AssociationIndication()
		if err != nil {
			return code, err
		}
		if code != xbee.AssociationScanning {
			return code, nil
		}

		if !deadline.IsZero() && time.Now().Add(s.opts.PollInterval).After(deadline) {
			return code, fmt.Errorf("%w after %s", ErrAssociationTimeout, maxWait)
		}
		s.log.Debug("scanning for network")
		time.Sleep(s.opts.PollInterval)
	}
}

// Join opens joining and waits for association. A non-zero final code is
// returned as an *AssociationError.
func (s *Session) Join(joinTime uint8, maxWait time.Duration) error {
	if err := s.StartJoin(joinTime); err != nil {
		return fmt.Errorf("start join: %w", err)
	}

	code, err := s.WaitAssociation(maxWait)
	if err != nil {
		return err
	}
	if code != xbee.AssociationSuccess {
		return &AssociationError{Code: code}
	}

	s.log.Info("joined network")
	return nil
}
