package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOutcome_Status(t *testing.T) {
	tests := []struct {
		kind   OutcomeKind
		status Status
		ok     bool
	}{
		{OutcomeNoResponse, StatusNotDeposited, false},
		{OutcomeRejectedImmediate, StatusFailed, true},
		{OutcomeFailed, StatusFailed, true},
		{OutcomeAcceptedWithWarnings, StatusRegistered, true},
		{OutcomeAccepted, StatusRegistered, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			status, ok := Outcome{Kind: tt.kind}.Status()
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.status, status)
		})
	}
}

func TestOutcome_Err(t *testing.T) {
	var noResp *NoResponseError
	require.True(t, errors.As(Outcome{Kind: OutcomeNoResponse}.Err(), &noResp))

	var rejected *RejectedImmediateError
	err := Outcome{Kind: OutcomeRejectedImmediate, BatchID: "b-1", HTTPStatus: 503, Message: "<error/>"}.Err()
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, 503, rejected.StatusCode)
	require.Equal(t, "<error/>", rejected.Body)

	var failed *FailedDepositError
	err = Outcome{Kind: OutcomeFailed, BatchID: "b-2", FailureCount: 3}.Err()
	require.True(t, errors.As(err, &failed))
	require.Equal(t, 3, failed.FailureCount)
	require.Contains(t, err.Error(), "b-2")

	require.NoError(t, Outcome{Kind: OutcomeAccepted}.Err())
	require.NoError(t, Outcome{Kind: OutcomeAcceptedWithWarnings}.Err())
}

func TestNewBatch_KeepsResponseOnlyForRejections(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rejected := NewBatch("1", Outcome{Kind: OutcomeRejectedImmediate, BatchID: "b-1", HTTPStatus: 503, Response: []byte("<error/>")}, at)
	require.Equal(t, "<error/>", rejected.Response)
	require.Equal(t, 503, rejected.HTTPStatus)
	require.Equal(t, at, rejected.SubmittedAt)

	accepted := NewBatch("1", Outcome{Kind: OutcomeAcceptedWithWarnings, BatchID: "b-2", WarningCount: 1, Response: []byte("<ok/>")}, at)
	require.Empty(t, accepted.Response)
	require.Equal(t, 1, accepted.WarningCount)
	require.Equal(t, OutcomeAcceptedWithWarnings, accepted.Outcome)
}

func TestIsFatal(t *testing.T) {
	require.True(t, IsFatal(&SerializationError{FilterKey: "article=>crossref-xml", Matches: 0}))
	require.True(t, IsFatal(fmt.Errorf("export: %w", &StorageError{Op: "write", Path: "/tmp/x", Err: errors.New("disk full")})))
	require.False(t, IsFatal(&NoResponseError{}))
	require.False(t, IsFatal(&MalformedResponseError{Reason: "missing batch_id"}))
	require.False(t, IsFatal(&InvalidTransitionError{ObjectID: "1", From: StatusRegistered, To: StatusFailed}))
	require.False(t, IsFatal(nil))
}

func TestSerializationError_Messages(t *testing.T) {
	require.Contains(t, (&SerializationError{FilterKey: "k", Matches: 2}).Error(), "found 2")
	require.Contains(t, (&SerializationError{FilterKey: "k", Matches: 1}).Error(), "produced no document")

	inner := errors.New("bad template")
	err := &SerializationError{FilterKey: "k", Matches: 1, Err: inner}
	require.ErrorIs(t, err, inner)
}
