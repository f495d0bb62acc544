package slackbot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// ErrInvalidAuth is returned when Slack rejects the bot token
var ErrInvalidAuth = errors.New("slack rejected the bot token")

// stopTimeout bounds how long Stop waits for slack-go to close the socket
const stopTimeout = 5 * time.Second

// State is a connection state change reported after Start succeeded
type State int

const (
	// Dropped means the socket closed unexpectedly; slack-go is reconnecting
	Dropped State = iota + 1
	// Reopened means slack-go reconnected after a drop
	Reopened
)

func (s State) String() string {
	switch s {
	case Dropped:
		return "dropped"
	case Reopened:
		return "reopened"
	default:
		return "unknown"
	}
}

// RTMSession is one real-time connection for one team.
// slack-go's ManageConnection owns the socket and every reconnect for the
// session's lifetime, so a session never has more than one socket open.
type RTMSession struct {
	rtm      *slack.RTM
	changes  chan State
	stopping chan struct{}
	ended    chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// NewRTMSession creates an unstarted RTM session on top of a Web API client
func NewRTMSession(client *slack.Client) *RTMSession {
	return &RTMSession{
		rtm:      client.NewRTM(),
		changes:  make(chan State, 4),
		stopping: make(chan struct{}),
		ended:    make(chan struct{}),
	}
}

// Start opens the connection and blocks until Slack confirms it or the first attempt fails.
func (s *RTMSession) Start(ctx context.Context) error {
	go s.rtm.ManageConnection()

	for {
		select {
		case <-ctx.Done():
			go s.disconnect()
			return ctx.Err()
		case ev := <-s.rtm.IncomingEvents:
			switch e := ev.Data.(type) {
			case *slack.ConnectedEvent:
				log.WithField("connection_count", e.ConnectionCount).Debug("RTM connected")
				s.mu.Lock()
				s.watching = true
				s.mu.Unlock()
				go s.watch()
				return nil
			case *slack.InvalidAuthEvent:
				// ManageConnection gives up on its own after invalid_auth
				return ErrInvalidAuth
			case *slack.ConnectionErrorEvent:
				s.disconnect()
				return fmt.Errorf("rtm connect attempt %d: %w", e.Attempt, e.ErrorObj)
			}
		}
	}
}

// Changes reports drops and reopens. It is closed once the session has ended for good,
// either after Stop or when slack-go stops reconnecting.
func (s *RTMSession) Changes() <-chan State {
	return s.changes
}

// Stop disconnects the session and waits for the socket to close
func (s *RTMSession) Stop() error {
	s.stopOnce.Do(func() { close(s.stopping) })
	s.disconnect()

	s.mu.Lock()
	watching := s.watching
	s.mu.Unlock()
	if !watching {
		return nil
	}

	select {
	case <-s.ended:
		return nil
	case <-time.After(stopTimeout):
		return errors.New("timed out waiting for RTM disconnect")
	}
}

func (s *RTMSession) disconnect() {
	if err := s.rtm.Disconnect(); err != nil {
		log.Debugf("RTM disconnect: %v", err)
	}
}

func (s *RTMSession) notify(state State) {
	select {
	case s.changes <- state:
	case <-s.stopping:
	}
}

// watch drains incoming events until ManageConnection returns
func (s *RTMSession) watch() {
	defer close(s.ended)
	defer close(s.changes)

	for ev := range s.rtm.IncomingEvents {
		switch e := ev.Data.(type) {
		case *slack.ConnectedEvent:
			log.WithField("connection_count", e.ConnectionCount).Info("RTM reconnected")
			s.notify(Reopened)
		case *slack.DisconnectedEvent:
			if e.Intentional {
				return
			}
			log.WithError(e.Cause).Warn("RTM connection dropped")
			s.notify(Dropped)
		case *slack.InvalidAuthEvent:
			log.Warn("RTM reconnect rejected, giving up")
			return
		}
	}
}
