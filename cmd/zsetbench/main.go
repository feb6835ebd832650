// Copyright 2021 Optakt Labs OÜ
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package main

import (
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/optakt/zset-core/batch"
	"github.com/optakt/zset-core/fixpoint"
	"github.com/optakt/zset-core/ring"
	"github.com/optakt/zset-core/spine"
	"github.com/optakt/zset-core/testing/helpers"
)

const (
	success = 0
	failure = 1
)

func main() {
	os.Exit(run())
}

var (
	spineTuplesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zsetbench_spine_tuples",
		Help: "Number of tuples held across the spine's levels after the workload completes.",
	})
	spineLevelsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zsetbench_spine_levels",
		Help: "Number of allocated levels in the spine after the workload completes.",
	})
	insertLatencyHist = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zsetbench_insert_latency_ms",
		Help:    "Latency of a single Spine.Insert call.",
		Buckets: prometheus.ExponentialBucketsRange(0.001, 100, 20),
	})
)

func run() int {
	var (
		flagLevel          string
		flagWorkload       string
		flagEffort         int
		flagCount          int
		flagNodes          int
		flagSeed           uint64
		flagMetricsAddress string
	)

	pflag.StringVarP(&flagLevel, "level", "l", "info", "log output level")
	pflag.StringVarP(&flagWorkload, "workload", "w", "galen", "workload to run: galen or random")
	pflag.IntVarP(&flagEffort, "effort", "e", spine.DefaultEffort, "spine fuel multiplier per inserted batch")
	pflag.IntVar(&flagCount, "count", 256, "number of tuples or edges to generate")
	pflag.IntVar(&flagNodes, "nodes", 64, "key/node range for the generated workload")
	pflag.Uint64Var(&flagSeed, "seed", 1, "seed for the deterministic fixture generator")
	pflag.StringVar(&flagMetricsAddress, "metrics-address", "localhost:0", "host:port to expose prometheus metrics on")

	pflag.Parse()

	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	level, err := zerolog.ParseLevel(flagLevel)
	if err != nil {
		log.Error().Str("level", flagLevel).Err(err).Msg("could not parse log level")
		return failure
	}
	log = log.Level(level)

	metricsListener, err := net.Listen("tcp", flagMetricsAddress)
	if err != nil {
		log.Error().Err(err).Msg("could not listen for metrics")
		return failure
	}
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.Serve(metricsListener, nil)
	}()
	log.Info().Str("address", metricsListener.Addr().String()).Msg("metrics server listening")

	switch flagWorkload {
	case "random":
		return runRandomWorkload(log, flagEffort, flagCount, flagNodes, flagSeed)
	case "galen":
		return runGalenWorkload(log, flagCount, flagNodes, flagSeed)
	default:
		log.Error().Str("workload", flagWorkload).Msg("unknown workload")
		return failure
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// runRandomWorkload inserts count pseudo-random singleton (key, weight)
// batches into a fresh spine, one Insert call at a time, and reports the
// resulting level occupancy via Describe.
func runRandomWorkload(log zerolog.Logger, effort, count, keyRange int, seed uint64) int {
	s, err := spine.NewSpine[int64, int64](cmpInt64, ring.Int{}, spine.WithEffort(effort))
	if err != nil {
		log.Error().Err(err).Msg("could not build spine")
		return failure
	}

	rng := helpers.NewGenerator(seed)
	keys, weights := helpers.SampleKeyWeightTuples(rng, count, uint16(keyRange))

	for i := range keys {
		builder := batch.NewBuilder[int64, int64](cmpInt64, ring.Int{}, batch.AntichainPresent(), batch.AntichainAbsent())
		builder.Push(keys[i], weights[i])

		start := time.Now()
		s.Insert(builder.Done())
		insertLatencyHist.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}

	merged := s.Consolidate()
	resultLen := 0
	if merged != nil {
		resultLen = merged.Len()
	}

	for _, row := range s.Describe() {
		log.Debug().Int("kind", row.Kind).Int("len", row.Len).Msg("spine level")
	}

	spineTuplesGauge.Set(float64(s.Len()))
	spineLevelsGauge.Set(float64(len(s.Describe())))

	log.Info().
		Int("inserted", count).
		Int("distinct_keys", resultLen).
		Msg("random workload complete")

	return success
}

type edge struct {
	From, To int64
}

func cmpEdge(a, b edge) int {
	switch {
	case a.From != b.From:
		if a.From < b.From {
			return -1
		}
		return 1
	case a.To != b.To:
		if a.To < b.To {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// runGalenWorkload seeds a random directed graph and computes its
// transitive closure with fixpoint.Iterate, the galen-style reachability
// benchmark from benches/galen.rs.
func runGalenWorkload(log zerolog.Logger, count, nodeRange int, seed uint64) int {
	rng := helpers.NewGenerator(seed)
	raw := helpers.SampleEdges(rng, count, uint16(nodeRange))

	base := make([]edge, 0, len(raw))
	seen := map[edge]bool{}
	for _, e := range raw {
		ed := edge{e[0], e[1]}
		if !seen[ed] {
			seen[ed] = true
			base = append(base, ed)
		}
	}

	full := map[edge]int64{}
	body := func(feedback *batch.Batch[edge, int64]) *batch.Batch[edge, int64] {
		var deltaEdges []edge
		if feedback != nil {
			c := feedback.Cursor()
			for c.Valid() {
				deltaEdges = append(deltaEdges, c.Key())
				c.Step()
			}
		}

		batcher := batch.NewBatcher[edge, int64](cmpEdge, ring.Int{})
		if feedback == nil {
			for _, e := range base {
				batcher.Push(e, 1)
			}
		} else {
			for _, d := range deltaEdges {
				for e := range full {
					if e.To == d.From {
						batcher.Push(edge{e.From, d.To}, 1)
					}
					if e.From == d.To {
						batcher.Push(edge{d.From, e.To}, 1)
					}
				}
			}
			for _, d := range deltaEdges {
				for _, d2 := range deltaEdges {
					if d2.From == d.To {
						batcher.Push(edge{d.From, d2.To}, 1)
					}
				}
			}
		}

		for _, d := range deltaEdges {
			full[d]++
		}

		return batcher.Seal(batch.AntichainPresent(), batch.AntichainAbsent())
	}

	start := time.Now()
	result, err := fixpoint.Iterate[edge, int64](body, cmpEdge, ring.Int{})
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Msg("transitive closure did not converge")
		return failure
	}

	log.Info().
		Int("input_edges", len(base)).
		Int("closure_edges", result.Len()).
		Dur("elapsed", elapsed).
		Msg("galen workload complete")

	return success
}
