// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"slices"
	"sync"
	"time"
)

const (
	// maxAllowedOffsetSecs is the largest median offset, in either
	// direction, that is applied to the local clock.
	maxAllowedOffsetSecs = 70 * 60

	// similarTimeSecs is how close a sample must be to the local clock
	// for the clock to be trusted when the median is out of range.
	similarTimeSecs = 5 * 60
)

// maxMedianTimeEntries is the size of the sample window.  It is odd so a full
// window still has a true median and keeps following new samples.  Tests
// override it.
var maxMedianTimeEntries = 199

// MedianTimeSource adjusts the local clock by the median offset of the time
// samples it was given.  posd samples the timestamps of headers that extend
// the best chain.
type MedianTimeSource interface {
	// AdjustedTime returns the local time shifted by the median offset,
	// truncated to whole seconds.
	AdjustedTime() time.Time

	// AddTimeSample records the time reported by the source with the
	// given id.  Samples from an id already in the window are ignored.
	AddTimeSample(id string, timeVal time.Time)

	// Offset returns the median offset applied to the local clock.
	Offset() time.Duration

	// IsSystemTimeOutOfSync reports whether the samples indicate the
	// local clock is wrong.
	IsSystemTimeOutOfSync() bool
}

// timeSample is one entry of the sample window.
type timeSample struct {
	id     string
	offset int64
}

// medianTime implements MedianTimeSource over a window of the most recent
// samples.
type medianTime struct {
	mtx        sync.Mutex
	window     []timeSample
	known      map[string]struct{}
	offsetSecs int64
	outOfSync  bool
}

var _ MedianTimeSource = (*medianTime)(nil)

// AdjustedTime returns the local time shifted by the median offset.
//
// This function is safe for concurrent access.
func (m *medianTime) AdjustedTime() time.Time {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	now := time.Unix(time.Now().Unix(), 0)
	return now.Add(time.Duration(m.offsetSecs) * time.Second)
}

// AddTimeSample adds a sample and recomputes the median once the window
// holds an odd number of at least five samples.
//
// This function is safe for concurrent access.
func (m *medianTime) AddTimeSample(id string, timeVal time.Time) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if _, ok := m.known[id]; ok {
		return
	}
	if len(m.window) >= maxMedianTimeEntries && maxMedianTimeEntries > 0 {
		delete(m.known, m.window[0].id)
		m.window = m.window[1:]
	}
	now := time.Unix(time.Now().Unix(), 0)
	sample := timeSample{id: id, offset: int64(timeVal.Sub(now).Seconds())}
	m.window = append(m.window, sample)
	m.known[id] = struct{}{}

	n := len(m.window)
	log.Debugf("Added time sample of %v (total: %d)",
		time.Duration(sample.offset)*time.Second, n)
	if n < 5 || n%2 == 0 {
		return
	}

	offsets := make([]int64, n)
	for i, s := range m.window {
		offsets[i] = s.offset
	}
	slices.Sort(offsets)
	median := offsets[n/2]

	if abs64(median) < maxAllowedOffsetSecs {
		m.offsetSecs = median
		m.outOfSync = false
		log.Debugf("New time offset: %v", time.Duration(median)*time.Second)
		return
	}

	// The median is too far off to apply.  The local clock is only blamed
	// when no sample agrees with it either.
	m.offsetSecs = 0
	wasOutOfSync := m.outOfSync
	m.outOfSync = !slices.ContainsFunc(offsets, func(o int64) bool {
		return abs64(o) < similarTimeSecs
	})
	if m.outOfSync && !wasOutOfSync {
		log.Warnf("Please check your date and time are correct!  posd " +
			"will not stake with an invalid time")
	}
}

// Offset returns the median offset applied to the local clock.
//
// This function is safe for concurrent access.
func (m *medianTime) Offset() time.Duration {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return time.Duration(m.offsetSecs) * time.Second
}

// IsSystemTimeOutOfSync reports whether the median of the samples was too far
// from the local clock while none of the samples were close to it.
//
// This function is safe for concurrent access.
func (m *medianTime) IsSystemTimeOutOfSync() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.outOfSync
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// NewMedianTime returns an empty MedianTimeSource.  Until five samples were
// added it reports the local clock unchanged.
func NewMedianTime() MedianTimeSource {
	return &medianTime{
		window: make([]timeSample, 0, maxMedianTimeEntries),
		known:  make(map[string]struct{}),
	}
}
