package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olmeda-realtime/internal/auth"
)

func TestDeferred_NotifiesOnlyOnChange(t *testing.T) {
	d := NewDeferred("")
	assert.Empty(t, d.CurrentIdentity())

	var seen []string
	d.OnChange(func(id string) { seen = append(seen, id) })

	d.Set("42")
	d.Set("42")
	d.Set("43")

	assert.Equal(t, "43", d.CurrentIdentity())
	assert.Equal(t, []string{"42", "43"}, seen)
}

func TestDeferred_ListenerAddedDuringSet(t *testing.T) {
	d := NewDeferred("")

	var late []string
	d.OnChange(func(string) {
		d.OnChange(func(id string) { late = append(late, id) })
	})

	d.Set("1")
	assert.Empty(t, late)

	d.Set("2")
	assert.Equal(t, []string{"2"}, late)
}

func TestFromCredentials(t *testing.T) {
	creds := auth.NewMemoryCredentials()
	src := FromCredentials{Store: creds}
	assert.Empty(t, src.CurrentIdentity())

	require.NoError(t, creds.Set(auth.KeyDoctorID, "7"))
	assert.Equal(t, "7", src.CurrentIdentity())
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "9", Resolve(nil, NewDeferred(""), Static("9"), Static("10")))
	assert.Empty(t, Resolve(Static("")))
}
