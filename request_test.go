// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequest_StatusMonotonicity(t *testing.T) {
	r := newRequest(0x02, Incoming)
	require.Equal(t, Waiting, r.Status())

	r.setStatus(Characterized)
	require.Equal(t, Characterized, r.Status())

	r.setStatus(Complete)
	require.Equal(t, Complete, r.Status())
	require.True(t, r.Status().Terminal())
}

func TestRequest_TimedOutIsTerminal(t *testing.T) {
	r := newRequest(0x01, Outgoing)
	r.setStatus(TimedOut)
	require.True(t, r.Status().Terminal())
}

func TestRequest_SentTimeOnlySetByStart(t *testing.T) {
	r := newRequest(0x01, Outgoing)
	require.True(t, r.SentTime().IsZero())
	r.start()
	require.False(t, r.SentTime().IsZero())
}

func TestRequest_IDsAreMonotonicallyAssigned(t *testing.T) {
	a := newRequest(0x01, Outgoing)
	b := newRequest(0x02, Outgoing)
	require.Less(t, a.ID(), b.ID())
}

func TestRequest_WaitBlocksUntilTerminal(t *testing.T) {
	r := newRequest(0x01, Outgoing)
	done := make(chan Status, 1)
	go func() {
		s, err := r.Wait(context.Background(), time.Millisecond)
		require.NoError(t, err)
		done <- s
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatalf("Wait returned before the request reached a terminal state")
	default:
	}

	r.setStatus(Complete)
	select {
	case s := <-done:
		require.Equal(t, Complete, s)
	case <-time.After(time.Second):
		t.Fatal("Wait did not observe the terminal transition")
	}
}

func TestRequest_WaitRespectsContextCancellation(t *testing.T) {
	r := newRequest(0x01, Outgoing)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Wait(ctx, time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRequest_DirectionAccessors(t *testing.T) {
	out := newRequest(0x05, Outgoing)
	require.True(t, out.IsOutgoing())
	require.False(t, out.IsIncoming())
	require.Equal(t, Outgoing, out.Direction())

	in := newRequest(0x05, Incoming)
	require.True(t, in.IsIncoming())
	require.False(t, in.IsOutgoing())
}
