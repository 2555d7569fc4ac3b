package repvgg

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/repvgg/internal/logger"
	"github.com/born-ml/repvgg/internal/tensor"
)

func tinyConfig() NetworkConfig {
	return NetworkConfig{
		Name:            "tiny",
		NumBlocks:       [NumStages]int{1, 2, 1, 1},
		WidthMultiplier: [NumStages]float64{0.125, 0.125, 0.125, 0.0625},
		NumClasses:      5,
		InChannels:      3,
		Seed:            7,
	}
}

func newTinyNetwork(t *testing.T, mutate func(*NetworkConfig)) *Network {
	t.Helper()
	cfg := tinyConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	net, err := NewNetwork(cfg, testBackend())
	require.NoError(t, err)
	randomize(testRand(), net.NamedParameters())
	return net
}

func TestNetworkLayout(t *testing.T) {
	net := newTinyNetwork(t, nil)

	blocks := net.Blocks()
	require.Len(t, blocks, 6)
	assert.Equal(t, []string{"stage0", "stage1.0", "stage2.0", "stage2.1", "stage3.0", "stage4.0"}, net.BlockNames())

	wantOut := []int{8, 8, 16, 16, 32, 32}
	wantStride := []int{2, 2, 2, 1, 2, 2}
	for i, b := range blocks {
		assert.Equal(t, wantOut[i], b.Config().OutChannels, "block %d", i)
		assert.Equal(t, wantStride[i], b.Config().Stride, "block %d", i)
	}
	assert.Equal(t, 32, net.Head().InFeatures())
	assert.Equal(t, Training, net.Mode())

	y, err := net.Forward(randomInput(testRand(), tensor.Shape{2, 3, 16, 16}))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 5}, y.Shape())
}

func TestNetworkStemWidthIsCapped(t *testing.T) {
	cfg := tinyConfig()
	cfg.WidthMultiplier[0] = 2
	assert.Equal(t, 64, cfg.StemWidth())
	assert.Equal(t, 128, cfg.StageWidth(0))
}

func TestNetworkDeterministicSeed(t *testing.T) {
	a, err := NewNetwork(tinyConfig(), testBackend())
	require.NoError(t, err)
	b, err := NewNetwork(tinyConfig(), testBackend())
	require.NoError(t, err)

	sa, sb := a.StateDict(), b.StateDict()
	require.Equal(t, len(sa), len(sb))
	for name, ta := range sa {
		assert.Equal(t, ta.Data(), sb[name].Data(), name)
	}
	assert.Zero(t, sa["linear.bias"].Sum())
	assert.NotZero(t, sa["stage1.0.rbr_dense.conv.weight"].Data()[0])
}

func TestConvertNetworkCopy(t *testing.T) {
	net := newTinyNetwork(t, func(c *NetworkConfig) { c.UseSE = true })
	x := randomInput(testRand(), tensor.Shape{2, 3, 16, 16})
	want, err := net.Forward(x)
	require.NoError(t, err)

	var buf bytes.Buffer
	deployed, err := ConvertNetwork(net, ConvertOptions{Copy: true, Logger: logger.Text(&buf, slog.LevelDebug)})
	require.NoError(t, err)

	assert.NotSame(t, net, deployed)
	assert.Equal(t, Training, net.Mode())
	assert.Equal(t, Deployed, deployed.Mode())
	assert.Less(t, deployed.NumParameters(), net.NumParameters())
	assert.Contains(t, buf.String(), "block=stage2.1")
	assert.Contains(t, buf.String(), "network converted")

	got, err := deployed.Forward(x)
	require.NoError(t, err)
	assert.Less(t, relErr(t, got, want), 1e-4)

	again, err := net.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), again.Data())
}

func TestConvertNetworkInPlaceAndMixed(t *testing.T) {
	net := newTinyNetwork(t, nil)
	x := randomInput(testRand(), tensor.Shape{1, 3, 16, 16})
	want, err := net.Forward(x)
	require.NoError(t, err)

	require.NoError(t, net.Blocks()[2].Convert())
	assert.Equal(t, Mixed, net.Mode())

	mixed, err := net.Forward(x)
	require.NoError(t, err)
	assert.Less(t, relErr(t, mixed, want), 1e-4)

	out, err := ConvertNetwork(net, ConvertOptions{})
	require.NoError(t, err)
	assert.Same(t, net, out)
	assert.Equal(t, Deployed, net.Mode())

	_, err = net.CustomL2()
	assert.ErrorIs(t, err, ErrNotTraining)
}

func TestConvertNetworkFailure(t *testing.T) {
	net := newTinyNetwork(t, nil)
	net.Blocks()[3].BatchNorms()[0].RunningVar().Data()[0] = -5

	_, err := ConvertNetwork(net, ConvertOptions{Copy: true})
	require.ErrorIs(t, err, ErrDegenerateVariance)
	assert.Contains(t, err.Error(), "stage2.1")
	assert.Equal(t, Training, net.Mode())
}

func TestNetworkCustomL2(t *testing.T) {
	net := newTinyNetwork(t, nil)
	total, err := net.CustomL2()
	require.NoError(t, err)

	var sum float64
	for _, b := range net.Blocks() {
		l2, err := b.CustomL2()
		require.NoError(t, err)
		sum += l2
	}
	assert.InDelta(t, sum, total, 1e-9)
	assert.Positive(t, total)

	require.NoError(t, net.Blocks()[0].Convert())
	partial, err := net.CustomL2()
	require.NoError(t, err)
	assert.Less(t, partial, total)
}

func TestNetworkConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NetworkConfig)
	}{
		{"override stem", func(c *NetworkConfig) { c.OverrideGroups = map[int]int{0: 2} }},
		{"zero classes", func(c *NetworkConfig) { c.NumClasses = 0 }},
		{"empty stage", func(c *NetworkConfig) { c.NumBlocks[2] = 0 }},
		{"no width", func(c *NetworkConfig) { c.WidthMultiplier[3] = 0.001 }},
		{"bad groups", func(c *NetworkConfig) { c.OverrideGroups = map[int]int{2: 3} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tinyConfig()
			tt.mutate(&cfg)
			_, err := NewNetwork(cfg, testBackend())
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestNetworkOverrideGroups(t *testing.T) {
	net := newTinyNetwork(t, func(c *NetworkConfig) { c.OverrideGroups = map[int]int{2: 2, 3: 4} })
	blocks := net.Blocks()
	assert.Equal(t, 1, blocks[0].Config().Groups)
	assert.Equal(t, 1, blocks[1].Config().Groups)
	assert.Equal(t, 2, blocks[2].Config().Groups)
	assert.Equal(t, 4, blocks[3].Config().Groups)

	x := randomInput(testRand(), tensor.Shape{1, 3, 16, 16})
	want, err := net.Forward(x)
	require.NoError(t, err)
	deployed, err := ConvertNetwork(net, ConvertOptions{Copy: true})
	require.NoError(t, err)
	got, err := deployed.Forward(x)
	require.NoError(t, err)
	assert.Less(t, relErr(t, got, want), 1e-4)
}

func TestNetworkDeployConfig(t *testing.T) {
	net := newTinyNetwork(t, func(c *NetworkConfig) { c.Deploy = true })
	assert.Equal(t, Deployed, net.Mode())
	for _, b := range net.Blocks() {
		assert.Len(t, b.Convs(), 1)
	}
}

func TestLoadStateDict(t *testing.T) {
	src := newTinyNetwork(t, nil)
	dst, err := NewNetwork(tinyConfig(), testBackend())
	require.NoError(t, err)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	x := randomInput(testRand(), tensor.Shape{1, 3, 16, 16})
	a, err := src.Forward(x)
	require.NoError(t, err)
	b, err := dst.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), b.Data())

	t.Run("missing", func(t *testing.T) {
		sd := src.StateDict()
		delete(sd, "linear.bias")
		assert.ErrorIs(t, dst.LoadStateDict(sd), ErrStateDict)
	})
	t.Run("unexpected", func(t *testing.T) {
		sd := src.StateDict()
		sd["extra"] = tensor.Zeros(tensor.Shape{1})
		assert.ErrorIs(t, dst.LoadStateDict(sd), ErrStateDict)
	})
	t.Run("shape mismatch leaves network untouched", func(t *testing.T) {
		sd := src.StateDict()
		sd["linear.bias"] = tensor.Zeros(tensor.Shape{4})
		sd["linear.weight"] = tensor.Full(tensor.Shape{5, 32}, 9)
		before := dst.StateDict()["linear.weight"].Data()
		assert.ErrorIs(t, dst.LoadStateDict(sd), ErrStateDict)
		assert.Equal(t, before, dst.StateDict()["linear.weight"].Data())
	})
	t.Run("training into deployed", func(t *testing.T) {
		deployed, err := ConvertNetwork(dst, ConvertOptions{Copy: true})
		require.NoError(t, err)
		assert.ErrorIs(t, deployed.LoadStateDict(src.StateDict()), ErrStateDict)
	})
}

func TestCheckpointRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*testing.T, *Network)
		mode    Mode
	}{
		{"training", func(*testing.T, *Network) {}, Training},
		{"deployed", func(t *testing.T, n *Network) {
			_, err := ConvertNetwork(n, ConvertOptions{})
			require.NoError(t, err)
		}, Deployed},
		{"mixed", func(t *testing.T, n *Network) {
			require.NoError(t, n.Blocks()[1].Convert())
			require.NoError(t, n.Blocks()[4].Convert())
		}, Mixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := newTinyNetwork(t, func(c *NetworkConfig) {
				c.UseSE = true
				c.OverrideGroups = map[int]int{2: 2}
			})
			tt.prepare(t, net)

			path := filepath.Join(t.TempDir(), "net.born")
			require.NoError(t, Save(path, net))

			loaded, err := Load(path, testBackend())
			require.NoError(t, err)
			assert.Equal(t, tt.mode, loaded.Mode())
			assert.Equal(t, net.Config(), loaded.Config())
			assert.Equal(t, net.NumParameters(), loaded.NumParameters())

			x := randomInput(testRand(), tensor.Shape{1, 3, 16, 16})
			want, err := net.Forward(x)
			require.NoError(t, err)
			got, err := loaded.Forward(x)
			require.NoError(t, err)
			assert.Equal(t, want.Data(), got.Data())
		})
	}
}

func TestCheckpointHeader(t *testing.T) {
	net := newTinyNetwork(t, nil)
	require.NoError(t, net.Blocks()[0].Convert())

	h, err := CheckpointHeader(net)
	require.NoError(t, err)
	assert.Equal(t, ModelType, h.ModelType)
	assert.Equal(t, "mixed", h.Metadata[MetaMode])
	assert.Equal(t, "stage0", h.Metadata[MetaDeployedBlocks])
	assert.Contains(t, h.Metadata[MetaConfig], `"num_classes":5`)
}
