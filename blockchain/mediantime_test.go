// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMedianTime checks the offset a sample set converges to and when the
// local clock is flagged as wrong.
func TestMedianTime(t *testing.T) {
	tests := []struct {
		name      string
		offsets   []int64 // seconds from now, one per peer
		want      int64
		dupIDs    bool
		outOfSync bool
	}{{
		name:    "single sample",
		offsets: []int64{1},
	}, {
		name:    "even sample count",
		offsets: []int64{1, 2, 3, 4},
	}, {
		name:    "five samples",
		offsets: []int64{-13, 57, -4, -23, -12},
		want:    -12,
	}, {
		name:    "six samples keep the previous median",
		offsets: []int64{55, -13, 61, -52, 39, 55},
		want:    39,
	}, {
		name:    "seven samples",
		offsets: []int64{-62, -58, -30, -62, 51, -30, 15},
		want:    -30,
	}, {
		name:    "repeated peers are counted once",
		offsets: []int64{-5, -4, -3, -2, -1},
		want:    -3,
		dupIDs:  true,
	}, {
		name:    "full window",
		offsets: []int64{-67, 67, -50, 24, 63, 17, 58, -14, 5, -32, -52},
		want:    17,
	}, {
		name:    "samples past the window are dropped",
		offsets: []int64{-67, 67, -50, 24, 63, 17, 58, -14, 5, -32, -52, 45, 4},
		want:    17,
	}, {
		name:      "all peers far away",
		offsets:   []int64{-4201, 4202, -4203, 4204, -4205},
		outOfSync: true,
	}, {
		name:    "one peer close to local time",
		offsets: []int64{4201, 4202, 4203, 4204, -290},
	}}

	maxMedianTimeEntries = 10
	defer func() { maxMedianTimeEntries = 199 }()

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			source := NewMedianTime()
			for i, offset := range test.offsets {
				id := strconv.Itoa(i)
				sample := time.Unix(time.Now().Unix(), 0).
					Add(time.Duration(offset) * time.Second)
				source.AddTimeSample(id, sample)
				if test.dupIDs {
					source.AddTimeSample(id, sample.Add(time.Hour))
				}
			}

			// The clock may tick between AddTimeSample and here.
			want := time.Duration(test.want) * time.Second
			got := source.Offset()
			require.Containsf(t, []time.Duration{want, want - time.Second},
				got, "offset")
			require.Equal(t, test.outOfSync, source.IsSystemTimeOutOfSync())

			now := time.Unix(time.Now().Unix(), 0)
			require.WithinDuration(t, now.Add(got), source.AdjustedTime(),
				time.Second)
		})
	}
}

// addOffsets adds one sample per offset under ids prefix0, prefix1, ...
func addOffsets(source MedianTimeSource, prefix string, offsets ...int64) {
	for i, offset := range offsets {
		now := time.Unix(time.Now().Unix(), 0)
		source.AddTimeSample(prefix+strconv.Itoa(i),
			now.Add(time.Duration(offset)*time.Second))
	}
}

// TestMedianTimeRollingWindow ensures a full odd sized window keeps following
// new samples and forgets the ids of samples that left it.
func TestMedianTimeRollingWindow(t *testing.T) {
	maxMedianTimeEntries = 5
	defer func() { maxMedianTimeEntries = 199 }()

	source := NewMedianTime()
	addOffsets(source, "a", 10, 10, 10, 10, 10)
	require.Contains(t, []time.Duration{10 * time.Second, 9 * time.Second},
		source.Offset())

	addOffsets(source, "b", 600, 600, 600)
	require.Contains(t, []time.Duration{600 * time.Second, 599 * time.Second},
		source.Offset())

	// a0 left the window so the id counts again.
	source.AddTimeSample("a0", time.Unix(time.Now().Unix(), 0).
		Add(600*time.Second))
	require.Contains(t, []time.Duration{600 * time.Second, 599 * time.Second},
		source.Offset())
}

// TestMedianTimeRecoversSync ensures the out of sync flag clears once the
// samples agree with the local clock again.
func TestMedianTimeRecoversSync(t *testing.T) {
	maxMedianTimeEntries = 5
	defer func() { maxMedianTimeEntries = 199 }()

	source := NewMedianTime()
	addOffsets(source, "old", -86400, -86400, -86400, -86400, -86400)
	require.True(t, source.IsSystemTimeOutOfSync())
	require.Zero(t, source.Offset())

	addOffsets(source, "new", 30, 30, 30)
	require.False(t, source.IsSystemTimeOutOfSync())
	require.Contains(t, []time.Duration{30 * time.Second, 29 * time.Second},
		source.Offset())
}
