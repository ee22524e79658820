package effects

import "math"

// Limiter is a fast peak compressor for the master bus. Panning a full
// signal hard to one side doubles that channel, so the master chain ends
// with one of these.
type Limiter struct {
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	makeup    float32
	envL      float32
	envR      float32
}

// NewLimiter creates a limiter.
// thresholdDB: level above which gain reduction starts (e.g. -3)
// ratio: reduction ratio above threshold (e.g. 20 for 20:1)
// attackMs, releaseMs: envelope follower times
func NewLimiter(sampleRate int, thresholdDB, ratio, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	if ratio < 1 {
		ratio = 1
	}
	return &Limiter{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		ratio:     ratio,
		attack:    float32(1.0 - math.Exp(-1.0/(math.Max(float64(attackMs), 0.01)*sr/1000.0))),
		release:   float32(1.0 - math.Exp(-1.0/(math.Max(float64(releaseMs), 0.01)*sr/1000.0))),
		makeup:    1,
	}
}

// NewMasterLimiter returns the limiter used at the end of the master chain.
func NewMasterLimiter(sampleRate int) *Limiter {
	return NewLimiter(sampleRate, -1, 20, 1, 80)
}

func (c *Limiter) Process(l, r float32) (float32, float32) {
	c.envL = c.follow(c.envL, l)
	c.envR = c.follow(c.envR, r)
	outL := l * c.gain(c.envL) * c.makeup
	outR := r * c.gain(c.envR) * c.makeup
	return clamp(outL, -1, 1), clamp(outR, -1, 1)
}

func (c *Limiter) follow(env, x float32) float32 {
	abs := float32(math.Abs(float64(x)))
	if abs > env {
		return env + c.attack*(abs-env)
	}
	return env + c.release*(abs-env)
}

func (c *Limiter) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}

func (c *Limiter) Reset() {
	c.envL = 0
	c.envR = 0
}
