package signalfeed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotResponseDecodes(t *testing.T) {
	raw := `{"e": 7, "t": 1700000000000, "m": [["AAA", 82], ["BBB", 45]]}`

	var snap snapshotResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))

	assert.EqualValues(t, 7, snap.E)
	assert.EqualValues(t, 1700000000000, snap.T)
	assert.Equal(t, map[string]int{"AAA": 82, "BBB": 45}, snap.M.toMap())
}

func TestScorePairRejectsWrongShape(t *testing.T) {
	var p scorePair
	err := json.Unmarshal([]byte(`["AAA", 1, 2]`), &p)
	assert.Error(t, err)
}

func TestPublicationDataDecodesDelta(t *testing.T) {
	raw := `{"data": {"e": 8, "t": 1700000001000, "d": [["CCC", 91]]}}`

	var pub publication
	require.NoError(t, json.Unmarshal([]byte(raw), &pub))

	assert.EqualValues(t, 8, pub.Data.E)
	assert.Equal(t, map[string]int{"CCC": 91}, pub.Data.D.toMap())
}

func TestServerFramePingShape(t *testing.T) {
	var frame serverFrame
	require.NoError(t, json.Unmarshal([]byte(`{"id": 1, "ping": {}}`), &frame))
	assert.NotNil(t, frame.Ping)
	assert.Nil(t, frame.Push)
}

func TestServerFramePushPublicationShape(t *testing.T) {
	var frame serverFrame
	raw := `{"push": {"pub": {"data": {"e": 1, "t": 2, "d": [["AAA", 70]]}}}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &frame))

	require.NotNil(t, frame.Push)
	require.NotNil(t, frame.Push.Pub)
	assert.Equal(t, map[string]int{"AAA": 70}, frame.Push.Pub.Data.D.toMap())
}

func TestConnectFrameEncodesTokenAndName(t *testing.T) {
	var f connectFrame
	f.ID = 1
	f.Connect.Token = "tok"
	f.Connect.Name = clientName

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"connect":{"token":"tok","name":"thecouncilai-bot"}}`, string(data))
}
