package domain

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreMapZeroValueMeansNoSignal(t *testing.T) {
	m := NewScoreMap()
	scores, lastUpdateMs := m.Snapshot()
	assert.Empty(t, scores)
	assert.Zero(t, lastUpdateMs)
	assert.False(t, m.PushOK())
}

func TestScoreMapUpsertMerges(t *testing.T) {
	m := NewScoreMap()
	m.Upsert(map[string]int{"AAA": 70}, 1, 1000)
	m.Upsert(map[string]int{"BBB": 40}, 2, 2000)

	scores, lastUpdateMs := m.Snapshot()
	assert.Equal(t, map[string]int{"AAA": 70, "BBB": 40}, scores)
	assert.EqualValues(t, 2000, lastUpdateMs)
}

func TestScoreMapSnapshotIsACopy(t *testing.T) {
	m := NewScoreMap()
	m.Upsert(map[string]int{"AAA": 70}, 1, 1000)

	scores, _ := m.Snapshot()
	scores["AAA"] = 999

	fresh, _ := m.Snapshot()
	assert.Equal(t, 70, fresh["AAA"])
}

func TestScoreMapPushOK(t *testing.T) {
	m := NewScoreMap()
	m.SetPushOK(true)
	assert.True(t, m.PushOK())
	m.SetPushOK(false)
	assert.False(t, m.PushOK())
}

func TestScoreMapConcurrentAccess(t *testing.T) {
	m := NewScoreMap()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			m.Upsert(map[string]int{"AAA": n}, int64(n), int64(n))
		}(i)
		go func() {
			defer wg.Done()
			m.Snapshot()
		}()
	}
	wg.Wait()
}
