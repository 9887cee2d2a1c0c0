package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSeed = `
voices:
  - name: aurora
    model: voicecraft-48k
    speed: 1.0
    language: en
djs:
  - name: Nova Flux
    voice: aurora
    language: en
    personality: [witty, warm]
    bio: Morning host with a weakness for orbital traffic reports.
clocks:
  - name: morning-drive
    description: Standard morning hour
    slots:
      - type: intro
        duration_sec: 30
      - type: news
        duration_sec: 900
      - type: weather
        duration_sec: 180
      - type: talk
        duration_sec: 600
      - type: culture
        duration_sec: 240
      - type: interview
        duration_sec: 720
      - type: traffic
        duration_sec: 180
      - type: teaser
        duration_sec: 30
      - type: music
        duration_sec: 720
programs:
  - name: Dawn Patrol
    description: Wake-up show
    clock: morning-drive
    djs: [Nova Flux]
    genre: news
    language: en
schedule:
  - program: Dawn Patrol
    day_of_week: 1
    start_time: "06:00"
    end_time: "10:00"
    priority: 10
docs:
  - title: The Meridian Arcology
    content: Habitat ring history.
    status: published
    tags: [places]
events:
  - title: Solar sail regatta
    content: Annual race around the L5 marker.
    event_time: 2526-09-01T12:00:00Z
    importance: 4
`

func TestParseSeedFile(t *testing.T) {
	seed, err := ParseSeedFile([]byte(sampleSeed))
	require.NoError(t, err)

	assert.Len(t, seed.Voices, 1)
	assert.Len(t, seed.DJs, 1)
	require.Len(t, seed.Clocks, 1)
	assert.Len(t, seed.Clocks[0].Slots, 9)

	sum := 0
	for _, slot := range seed.Clocks[0].Slots {
		sum += slot.DurationSec
	}
	assert.Equal(t, 3600, sum)

	require.Len(t, seed.Schedule, 1)
	require.NotNil(t, seed.Schedule[0].DayOfWeek)
	assert.Equal(t, 1, *seed.Schedule[0].DayOfWeek)
	assert.Equal(t, "06:00", seed.Schedule[0].StartTime)

	require.Len(t, seed.Events, 1)
	assert.Equal(t, 2526, seed.Events[0].EventTime.Year())
}

func TestParseSeedFileRejectsDanglingReferences(t *testing.T) {
	_, err := ParseSeedFile([]byte(`
programs:
  - name: Orphan Show
    djs: [Nobody]
`))
	assert.Error(t, err)

	_, err = ParseSeedFile([]byte(`
schedule:
  - start_time: "06:00"
    end_time: "07:00"
`))
	assert.Error(t, err)
}

func TestNormalizeWallClock(t *testing.T) {
	assert.Equal(t, "06:00:00", normalizeWallClock("06:00"))
	assert.Equal(t, "06:00:00", normalizeWallClock("06:00:00"))
}
