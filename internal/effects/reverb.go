package effects

// Reverb is a small Schroeder room: four parallel combs feeding two
// series allpasses. It gives single tones some space on the master bus.
type Reverb struct {
	combs   [4]delayLine
	allpass [2]delayLine
	wet     float32
}

type delayLine struct {
	buf []float32
	pos int
	fb  float32
}

// comb delay ratios relative to the base length; mutually prime-ish.
var combRatios = [4]int{1000, 1117, 1271, 1437}

// NewReverb creates a reverb.
// room: 0..1 scales the delay lengths
// decay: 0..0.95 comb feedback
// wet: wet/dry mix 0..1
func NewReverb(sampleRate int, room, decay, wet float32) *Reverb {
	base := int(float32(sampleRate) * clamp(room, 0, 1) * 0.05)
	if base < 10 {
		base = 10
	}
	r := &Reverb{wet: clamp(wet, 0, 1)}
	for i := range r.combs {
		r.combs[i] = newDelayLine(base*combRatios[i]/1000, clamp(decay, 0, 0.95))
	}
	r.allpass[0] = newDelayLine(base*347/1000, 0.5)
	r.allpass[1] = newDelayLine(base*213/1000, 0.5)
	return r
}

func newDelayLine(n int, fb float32) delayLine {
	if n < 1 {
		n = 1
	}
	return delayLine{buf: make([]float32, n), fb: fb}
}

func (r *Reverb) Process(l, rr float32) (float32, float32) {
	in := (l + rr) * 0.5
	var out float32
	for i := range r.combs {
		out += r.combs[i].comb(in)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].allpass(out)
	}
	dry := 1 - r.wet
	return l*dry + out*r.wet, rr*dry + out*r.wet
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		r.combs[i].clear()
	}
	for i := range r.allpass {
		r.allpass[i].clear()
	}
}

func (d *delayLine) comb(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.fb
	d.step()
	return out
}

func (d *delayLine) allpass(in float32) float32 {
	delayed := d.buf[d.pos]
	d.buf[d.pos] = in + delayed*d.fb
	d.step()
	return delayed - in
}

func (d *delayLine) step() {
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
}

func (d *delayLine) clear() {
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.pos = 0
}
