// Command pairauth-loadtest hammers Engine.Authenticate with concurrent workers and reports
// latency percentiles per phase: valid access tokens, rotation from refresh tokens, garbage
// tokens, and password logins against a Redis-backed user store.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/MrEthical07/pairAuth/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const loadtestPassword = "loadtest-password-0001"

func main() {
	var (
		principals  = flag.Int("principals", 10000, "number of token pairs to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per token phase")
		users       = flag.Int("users", 50, "accounts to register for the login phase; 0 skips it")
		logins      = flag.Int("logins", 500, "operations in the login phase")
		argonMemKB  = flag.Uint("argon-memory", 8*1024, "argon2id memory in KB for the login phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "pairauth-lt:", "user key prefix")
	)
	flag.Parse()

	if *principals <= 0 || *concurrency <= 0 || *ops <= 0 || *users < 0 {
		fmt.Fprintln(os.Stderr, "principals, concurrency and ops must be > 0; users must be >= 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := pairAuth.DefaultConfig()
	cfg.Token.AccessSecret = []byte("loadtest-access-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("loadtest-refresh-secret-0123456789abcdef")
	cfg.Password.Memory = uint32(*argonMemKB)
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := pairAuth.New().
		WithConfig(cfg).
		WithUserProvider(redisstore.New(client, redisstore.WithPrefix(*prefix))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d token pairs...\n", *principals)
	startSeed := time.Now()
	pairs := make([]pairAuth.TokenPair, *principals)
	for i := range pairs {
		p := pairAuth.Principal{UserID: fmt.Sprintf("u-%d", i), Email: fmt.Sprintf("user%d@loadtest.local", i)}
		pair, err := engine.IssuePair(ctx, p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		pairs[i] = pair
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) bool {
		pair := pairs[r.Intn(len(pairs))]
		res := engine.Authenticate(ctx, pairAuth.Credentials{AccessCookie: pair.AccessToken, RefreshCookie: pair.RefreshToken})
		return res.Outcome == pairAuth.OutcomeAuthenticated
	})
	rotateStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) bool {
		pair := pairs[r.Intn(len(pairs))]
		res := engine.Authenticate(ctx, pairAuth.Credentials{RefreshCookie: pair.RefreshToken})
		return res.Outcome == pairAuth.OutcomeRotated
	})
	rejectStats := runPhase(*ops, *concurrency, 4421, func(r *rand.Rand) bool {
		res := engine.Authenticate(ctx, pairAuth.Credentials{Bearer: "garbage.token.value", RefreshCookie: "also-garbage"})
		return res.Outcome == pairAuth.OutcomeRejected
	})

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("rotate", rotateStats)
	printStats("reject", rejectStats)

	if *users > 0 && *logins > 0 {
		fmt.Printf("registering %d accounts...\n", *users)
		for i := 0; i < *users; i++ {
			_, err := engine.Register(ctx, pairAuth.RegisterInput{
				Name:     fmt.Sprintf("Load User %d", i),
				Email:    fmt.Sprintf("login%d@loadtest.local", i),
				Password: loadtestPassword,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
				os.Exit(1)
			}
		}
		loginStats := runPhase(*logins, *concurrency, 3323, func(r *rand.Rand) bool {
			email := fmt.Sprintf("login%d@loadtest.local", r.Intn(*users))
			_, err := engine.Login(ctx, email, loadtestPassword)
			return err == nil
		})
		printStats("login", loginStats)
	}

	snap := engine.MetricsSnapshot()
	fmt.Printf("counters: authenticated=%d rotated=%d rejected=%d\n",
		snap.Counters[pairAuth.MetricAuthAuthenticated],
		snap.Counters[pairAuth.MetricAuthRotated],
		snap.Counters[pairAuth.MetricAuthRejected],
	)
}

// runPhase runs op ops times across concurrency workers. op reports whether the outcome
// was the expected one; anything else counts as a failure.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
