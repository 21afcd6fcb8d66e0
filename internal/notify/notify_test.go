package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scholarly-tools/doideposit/internal/pubsub"
)

func TestCatalog_Text(t *testing.T) {
	c := DefaultCatalog()

	require.Equal(t, "Registration successful!", c.Text(KeyRegisterSuccess, ""))
	require.Equal(t, "The object 42 was not found.", c.Text(KeyObjectNotFound, "42"))
	require.Equal(t, "The object 7 is marked active and was not deposited.", c.Text(KeyMarkedRegistered, "7"))
	require.Equal(t,
		"Registration was successful but the following warning occurred: '<warning/>'.",
		c.Text(KeyDepositWarning, "<warning/>"))
	require.Equal(t,
		"Registration was not entirely successful! The DOI registration server returned an error. No response from server.",
		c.Text(KeyDepositError, NoResponseParam))
	require.Equal(t, "##missing.key##", c.Text("missing.key", ""))
}

func TestCatalog_Merge(t *testing.T) {
	c := DefaultCatalog()
	override, err := LoadCatalog([]byte(`common.register.success: "Alles gut!"`))
	require.NoError(t, err)

	c.Merge(override)
	require.Equal(t, "Alles gut!", c.Text(KeyRegisterSuccess, ""))
	require.True(t, c.Has(KeyCLIError))
}

func TestLoadCatalog_Invalid(t *testing.T) {
	_, err := LoadCatalog([]byte("- not\n- a map"))
	require.Error(t, err)
}

func TestConsole_SummaryLine(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, DefaultCatalog())

	require.NoError(t, c.Notify(context.Background(), "cli", Notification{Key: KeyRegisterSuccess, Severity: SeveritySuccess}))

	require.Equal(t, "Registration successful!\n", buf.String())
	require.Zero(t, c.Entries())
}

func TestConsole_EntriesShareOneHeader(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, DefaultCatalog())

	require.NoError(t, c.Notify(context.Background(), "cli", Notification{Key: KeyDepositWarning, Param: "w1", Severity: SeverityWarning, Entry: true}))
	require.NoError(t, c.Notify(context.Background(), "cli", Notification{Key: KeyObjectNotFound, Param: "9", Severity: SeverityError, Entry: true}))

	require.Equal(t, "ERROR:\n"+
		"*** Registration was successful but the following warning occurred: 'w1'.\n"+
		"*** The object 9 was not found.\n", buf.String())
	require.Equal(t, 2, c.Entries())
}

func TestQueue_DrainPerUser(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	require.NoError(t, q.Notify(context.Background(), "alice", Notification{Key: "a1"}))
	require.NoError(t, q.Notify(context.Background(), "bob", Notification{Key: "b1"}))
	require.NoError(t, q.Notify(context.Background(), "alice", Notification{Key: "a2"}))

	require.Equal(t, 2, q.Pending("alice"))
	drained := q.Drain("alice")
	require.Len(t, drained, 2)
	require.Equal(t, "a1", drained[0].Key)
	require.Equal(t, "a2", drained[1].Key)

	require.Empty(t, q.Drain("alice"))
	require.Equal(t, 1, q.Pending("bob"))
}

func TestQueue_DropsOldestOverLimit(t *testing.T) {
	q := NewQueue()
	defer q.Close()
	q.limit = 2

	for _, key := range []string{"1", "2", "3"} {
		require.NoError(t, q.Notify(context.Background(), "alice", Notification{Key: key}))
	}

	drained := q.Drain("alice")
	require.Len(t, drained, 2)
	require.Equal(t, "2", drained[0].Key)
}

func TestQueue_PublishesNotifications(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	ch := q.Subscribe(t.Context())
	require.NoError(t, q.Notify(context.Background(), "alice", Notification{Key: KeyRegisterSuccess}))

	select {
	case event := <-ch:
		require.Equal(t, pubsub.NotifiedEvent, event.Type)
		require.Equal(t, "alice", event.Payload.User)
		require.Equal(t, KeyRegisterSuccess, event.Payload.Notification.Key)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notification event")
	}
}
