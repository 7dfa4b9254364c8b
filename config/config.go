package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kutluhann/bridged-kademlia-sim/constants"
	"github.com/kutluhann/bridged-kademlia-sim/dht"
)

var ErrInvalidConfiguration = errors.New("config: invalid configuration")

// Config is everything a simulation run is parameterised with.
type Config struct {
	Bits     int
	K        int
	Alpha    int
	Strategy string

	Seed             uint64
	Domains          int
	Nodes            int
	BridgesPerDomain int
	SeedNeighbours   int

	Duration       time.Duration
	LatencyMin     time.Duration
	LatencyMax     time.Duration
	RequestTimeout time.Duration
	LookupTimeout  time.Duration
	TrafficPeriod  time.Duration
	ChurnPeriod    time.Duration
	ObserverPeriod time.Duration

	// Churn
	PIdle   float64
	PAdd    float64
	PRem    float64
	MinSize int
	MaxSize int

	ResultsDir string
	TraceFile  string
}

func Default() *Config {
	return &Config{
		Bits:             constants.Bits,
		K:                constants.K,
		Alpha:            constants.Alpha,
		Strategy:         "naive-intra",
		Seed:             1,
		Domains:          constants.Domains,
		Nodes:            constants.Nodes,
		BridgesPerDomain: constants.BridgesPerDomain,
		SeedNeighbours:   constants.SeedNeighbours,
		Duration:         constants.Duration,
		LatencyMin:       constants.LatencyMin,
		LatencyMax:       constants.LatencyMax,
		RequestTimeout:   constants.RequestTimeout,
		LookupTimeout:    constants.LookupTimeout,
		TrafficPeriod:    constants.TrafficPeriod,
		ChurnPeriod:      constants.ChurnPeriod,
		ObserverPeriod:   constants.ObserverPeriod,
		PIdle:            1,
		MinSize:          constants.Nodes / 2,
		MaxSize:          constants.Nodes * 2,
	}
}

// Load builds a configuration from the defaults, the given dotenv files (or
// ./.env if present when none are given) and the process environment, in
// increasing order of precedence.
func Load(files ...string) (*Config, error) {
	values := map[string]string{}
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		read, err := godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("config: read %v: %w", files, err)
		}
		values = read
	}

	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	})
}

// FromLookup builds and validates a configuration from a key lookup.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	p.setInt("KAD_BITS", &c.Bits)
	p.setInt("KAD_K", &c.K)
	p.setInt("KAD_ALPHA", &c.Alpha)
	p.setString("KAD_STRATEGY", &c.Strategy)

	p.setUint64("SIM_SEED", &c.Seed)
	p.setInt("SIM_DOMAINS", &c.Domains)
	p.setInt("SIM_NODES", &c.Nodes)
	p.setInt("SIM_BRIDGES_PER_DOMAIN", &c.BridgesPerDomain)
	p.setInt("SIM_SEED_NEIGHBOURS", &c.SeedNeighbours)
	p.setDuration("SIM_DURATION", &c.Duration)
	p.setDuration("SIM_LATENCY_MIN", &c.LatencyMin)
	p.setDuration("SIM_LATENCY_MAX", &c.LatencyMax)
	p.setDuration("SIM_REQUEST_TIMEOUT", &c.RequestTimeout)
	p.setDuration("SIM_LOOKUP_TIMEOUT", &c.LookupTimeout)
	p.setDuration("SIM_TRAFFIC_PERIOD", &c.TrafficPeriod)
	p.setDuration("SIM_CHURN_PERIOD", &c.ChurnPeriod)
	p.setDuration("SIM_OBSERVER_PERIOD", &c.ObserverPeriod)

	p.setFloat("CHURN_P_IDLE", &c.PIdle)
	p.setFloat("CHURN_P_ADD", &c.PAdd)
	p.setFloat("CHURN_P_REM", &c.PRem)
	p.setInt("CHURN_MIN_SIZE", &c.MinSize)
	p.setInt("CHURN_MAX_SIZE", &c.MaxSize)

	p.setString("SIM_RESULTS_DIR", &c.ResultsDir)
	p.setString("SIM_TRACE_FILE", &c.TraceFile)

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Variant is the parsed lookup strategy. Call Validate first.
func (c *Config) Variant() dht.Variant {
	v, _ := dht.ParseVariant(c.Strategy)
	return v
}

// Protocol returns the parameters shared by every node.
func (c *Config) Protocol() dht.Config {
	return dht.Config{
		Bits:           c.Bits,
		K:              c.K,
		Alpha:          c.Alpha,
		Variant:        c.Variant(),
		RequestTimeout: c.RequestTimeout,
		LookupTimeout:  c.LookupTimeout,
	}
}

func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Bits >= 1 && c.Bits <= constants.MaxBits, "bits %d outside 1..%d", c.Bits, constants.MaxBits)
	check(c.K >= 1, "K %d must be positive", c.K)
	check(c.Alpha >= 1, "alpha %d must be positive", c.Alpha)
	if _, err := dht.ParseVariant(c.Strategy); err != nil {
		errs = append(errs, err)
	}

	check(c.Domains >= 1, "domains %d must be positive", c.Domains)
	check(c.Nodes >= c.Domains, "nodes %d fewer than domains %d", c.Nodes, c.Domains)
	check(c.BridgesPerDomain >= 0, "bridges per domain %d negative", c.BridgesPerDomain)
	check(c.SeedNeighbours >= 0, "seed neighbours %d negative", c.SeedNeighbours)
	check(c.Duration > 0, "duration %v must be positive", c.Duration)
	check(c.LatencyMin >= 0 && c.LatencyMin <= c.LatencyMax, "latency range %v..%v", c.LatencyMin, c.LatencyMax)
	check(c.RequestTimeout > 0, "request timeout %v must be positive", c.RequestTimeout)
	check(c.LookupTimeout >= c.RequestTimeout, "lookup timeout %v shorter than request timeout %v", c.LookupTimeout, c.RequestTimeout)
	check(c.TrafficPeriod > 0, "traffic period %v must be positive", c.TrafficPeriod)
	check(c.ChurnPeriod > 0, "churn period %v must be positive", c.ChurnPeriod)
	check(c.ObserverPeriod > 0, "observer period %v must be positive", c.ObserverPeriod)

	for name, p := range map[string]float64{"p_idle": c.PIdle, "p_add": c.PAdd, "p_rem": c.PRem} {
		check(p >= 0 && p <= 1, "%s %g outside [0,1]", name, p)
	}
	check(math.Abs(c.PIdle+c.PAdd+c.PRem-1) < 1e-9, "churn probabilities sum to %g, want 1", c.PIdle+c.PAdd+c.PRem)
	check(c.MinSize >= 0 && c.MinSize <= c.MaxSize, "churn size range %d..%d", c.MinSize, c.MaxSize)

	// Every node needs its own identifier.
	if c.Bits >= 1 && c.Bits < 63 {
		space := int64(1) << c.Bits
		check(int64(c.Nodes) <= space, "%d nodes do not fit a %d-bit identifier space", c.Nodes, c.Bits)
		check(int64(c.MaxSize) <= space, "churn max size %d does not fit a %d-bit identifier space", c.MaxSize, c.Bits)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) raw(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (p *parser) fail(key, v string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, v, err))
}

func (p *parser) setString(key string, dst *string) {
	if v, ok := p.raw(key); ok {
		*dst = v
	}
}

func (p *parser) setInt(key string, dst *int) {
	if v, ok := p.raw(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (p *parser) setUint64(key string, dst *uint64) {
	if v, ok := p.raw(key); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (p *parser) setFloat(key string, dst *float64) {
	if v, ok := p.raw(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (p *parser) setDuration(key string, dst *time.Duration) {
	if v, ok := p.raw(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = d
	}
}
