package lstm

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ContextSize is the number of pitches the model looks at to predict the
// next one.
const ContextSize = 4

// MaxEpochs bounds a training run.
const MaxEpochs = 100

type Options struct {
	Embedding    int
	Hidden       int
	Epochs       int
	BatchSize    int
	LearningRate float64
}

func (o Options) withDefaults() Options {
	if o.Embedding <= 0 {
		o.Embedding = 16
	}
	if o.Hidden <= 0 {
		o.Hidden = 32
	}
	if o.Epochs <= 0 {
		o.Epochs = 20
	}
	if o.Epochs > MaxEpochs {
		o.Epochs = MaxEpochs
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 16
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.01
	}
	return o
}

// Model is a pitch embedding followed by an LSTM layer and a softmax
// projection over the vocabulary.
type Model struct {
	vocab *Vocabulary
	opts  Options

	embed *mat.Dense    // V x E
	w     *mat.Dense    // 4H x (E+H), gates i f o g
	b     *mat.VecDense // 4H
	wy    *mat.Dense    // V x H
	by    *mat.VecDense // V
}

// New returns an untrained model with random weights.
func New(rng *rand.Rand, vocab *Vocabulary, opts Options) *Model {
	opts = opts.withDefaults()
	v, e, h := vocab.Size(), opts.Embedding, opts.Hidden
	m := &Model{
		vocab: vocab,
		opts:  opts,
		embed: randomDense(rng, v, e, 1),
		w:     randomDense(rng, 4*h, e+h, e+h),
		b:     mat.NewVecDense(4*h, nil),
		wy:    randomDense(rng, v, h, h),
		by:    mat.NewVecDense(v, nil),
	}
	// forget gate bias
	for j := h; j < 2*h; j++ {
		m.b.SetVec(j, 1)
	}
	return m
}

func randomDense(rng *rand.Rand, r, c, fanIn int) *mat.Dense {
	scale := 1 / math.Sqrt(float64(fanIn))
	data := make([]float64, r*c)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return mat.NewDense(r, c, data)
}

func (m *Model) Vocabulary() *Vocabulary {
	return m.vocab
}

type step struct {
	tok         int
	xh          []float64
	i, f, o, g  []float64
	cPrev, c, h []float64
}

type trace struct {
	steps []step
	h     []float64
	probs []float64
}

func (m *Model) forward(context []int) *trace {
	_, e := m.embed.Dims()
	h := m.opts.Hidden

	hPrev := make([]float64, h)
	cPrev := make([]float64, h)
	tr := &trace{}
	for _, tok := range context {
		xh := make([]float64, e+h)
		copy(xh, m.embed.RawRowView(tok))
		copy(xh[e:], hPrev)

		z := mat.NewVecDense(4*h, nil)
		z.MulVec(m.w, mat.NewVecDense(e+h, xh))
		z.AddVec(z, m.b)
		zs := z.RawVector().Data

		s := step{
			tok:   tok,
			xh:    xh,
			i:     make([]float64, h),
			f:     make([]float64, h),
			o:     make([]float64, h),
			g:     make([]float64, h),
			cPrev: cPrev,
			c:     make([]float64, h),
			h:     make([]float64, h),
		}
		for j := 0; j < h; j++ {
			s.i[j] = sigmoid(zs[j])
			s.f[j] = sigmoid(zs[h+j])
			s.o[j] = sigmoid(zs[2*h+j])
			s.g[j] = math.Tanh(zs[3*h+j])
			s.c[j] = s.f[j]*cPrev[j] + s.i[j]*s.g[j]
			s.h[j] = s.o[j] * math.Tanh(s.c[j])
		}
		tr.steps = append(tr.steps, s)
		hPrev, cPrev = s.h, s.c
	}

	logits := mat.NewVecDense(m.vocab.Size(), nil)
	logits.MulVec(m.wy, mat.NewVecDense(h, hPrev))
	logits.AddVec(logits, m.by)
	tr.h = hPrev
	tr.probs = softmax(logits.RawVector().Data)
	return tr
}

type gradients struct {
	embed *mat.Dense
	w     *mat.Dense
	b     *mat.VecDense
	wy    *mat.Dense
	by    *mat.VecDense
}

func (m *Model) newGradients() *gradients {
	v, e := m.embed.Dims()
	h := m.opts.Hidden
	return &gradients{
		embed: mat.NewDense(v, e, nil),
		w:     mat.NewDense(4*h, e+h, nil),
		b:     mat.NewVecDense(4*h, nil),
		wy:    mat.NewDense(v, h, nil),
		by:    mat.NewVecDense(v, nil),
	}
}

func (g *gradients) zero() {
	g.embed.Zero()
	g.w.Zero()
	g.b.Zero()
	g.wy.Zero()
	g.by.Zero()
}

func (g *gradients) slices() [][]float64 {
	return [][]float64{
		g.embed.RawMatrix().Data,
		g.w.RawMatrix().Data,
		g.b.RawVector().Data,
		g.wy.RawMatrix().Data,
		g.by.RawVector().Data,
	}
}

func (m *Model) params() [][]float64 {
	return [][]float64{
		m.embed.RawMatrix().Data,
		m.w.RawMatrix().Data,
		m.b.RawVector().Data,
		m.wy.RawMatrix().Data,
		m.by.RawVector().Data,
	}
}

// backward accumulates the cross entropy gradients of one sample and
// returns its loss.
func (m *Model) backward(tr *trace, target int, g *gradients) float64 {
	_, e := m.embed.Dims()
	h := m.opts.Hidden
	v := m.vocab.Size()

	dlogits := make([]float64, v)
	copy(dlogits, tr.probs)
	dlogits[target] -= 1
	dl := mat.NewVecDense(v, dlogits)
	g.wy.RankOne(g.wy, 1, dl, mat.NewVecDense(h, tr.h))
	g.by.AddVec(g.by, dl)

	dhv := mat.NewVecDense(h, nil)
	dhv.MulVec(m.wy.T(), dl)
	dh := dhv.RawVector().Data
	dcNext := make([]float64, h)

	for t := len(tr.steps) - 1; t >= 0; t-- {
		s := tr.steps[t]
		dz := make([]float64, 4*h)
		for j := 0; j < h; j++ {
			tc := math.Tanh(s.c[j])
			do := dh[j] * tc
			dc := dcNext[j] + dh[j]*s.o[j]*(1-tc*tc)
			di := dc * s.g[j]
			dg := dc * s.i[j]
			df := dc * s.cPrev[j]
			dcNext[j] = dc * s.f[j]

			dz[j] = di * s.i[j] * (1 - s.i[j])
			dz[h+j] = df * s.f[j] * (1 - s.f[j])
			dz[2*h+j] = do * s.o[j] * (1 - s.o[j])
			dz[3*h+j] = dg * (1 - s.g[j]*s.g[j])
		}
		dzv := mat.NewVecDense(4*h, dz)
		g.w.RankOne(g.w, 1, dzv, mat.NewVecDense(e+h, s.xh))
		g.b.AddVec(g.b, dzv)

		dxh := mat.NewVecDense(e+h, nil)
		dxh.MulVec(m.w.T(), dzv)
		d := dxh.RawVector().Data
		floats.Add(g.embed.RawRowView(s.tok), d[:e])
		dh = d[e:]
	}
	return -math.Log(math.Max(tr.probs[target], 1e-12))
}

// Sample is a training window and the pitch that follows it.
type Sample struct {
	Context [ContextSize]int
	Target  int
}

const clipNorm = 5.0

// Train fits the model with mini-batch Adam and returns the mean loss of
// the last epoch.
func (m *Model) Train(rng *rand.Rand, samples []Sample) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("lstm: no training samples")
	}
	for _, s := range samples {
		for _, tok := range s.Context {
			if tok < 0 || tok >= m.vocab.Size() {
				return 0, fmt.Errorf("lstm: token %d out of vocabulary", tok)
			}
		}
		if s.Target < 0 || s.Target >= m.vocab.Size() {
			return 0, fmt.Errorf("lstm: target %d out of vocabulary", s.Target)
		}
	}

	grads := m.newGradients()
	opt := newAdam(m.params(), grads.slices(), m.opts.LearningRate)
	order := rng.Perm(len(samples))

	var loss float64
	for epoch := 0; epoch < m.opts.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		loss = 0
		for start := 0; start < len(order); start += m.opts.BatchSize {
			end := start + m.opts.BatchSize
			if end > len(order) {
				end = len(order)
			}
			grads.zero()
			for _, idx := range order[start:end] {
				s := samples[idx]
				tr := m.forward(s.Context[:])
				loss += m.backward(tr, s.Target, grads)
			}
			n := float64(end - start)
			for _, g := range grads.slices() {
				floats.Scale(1/n, g)
				if norm := floats.Norm(g, 2); norm > clipNorm {
					floats.Scale(clipNorm/norm, g)
				}
			}
			opt.step()
		}
		loss /= float64(len(samples))
	}
	return loss, nil
}

// Predict returns the probability of every vocabulary pitch following the
// context. Only the last ContextSize tokens are used.
func (m *Model) Predict(context []int) []float64 {
	if len(context) > ContextSize {
		context = context[len(context)-ContextSize:]
	}
	return m.forward(context).probs
}

type adam struct {
	params [][]float64
	grads  [][]float64
	m, v   [][]float64
	lr     float64
	t      int
}

const (
	beta1   = 0.9
	beta2   = 0.999
	epsilon = 1e-8
)

func newAdam(params, grads [][]float64, lr float64) *adam {
	a := &adam{params: params, grads: grads, lr: lr}
	for _, p := range params {
		a.m = append(a.m, make([]float64, len(p)))
		a.v = append(a.v, make([]float64, len(p)))
	}
	return a
}

func (a *adam) step() {
	a.t++
	c1 := 1 - math.Pow(beta1, float64(a.t))
	c2 := 1 - math.Pow(beta2, float64(a.t))
	for k, p := range a.params {
		g, m, v := a.grads[k], a.m[k], a.v[k]
		for i := range p {
			m[i] = beta1*m[i] + (1-beta1)*g[i]
			v[i] = beta2*v[i] + (1-beta2)*g[i]*g[i]
			p[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + epsilon)
		}
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	max := floats.Max(logits)
	for i, l := range logits {
		out[i] = math.Exp(l - max)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}
