package repvgg

import (
	"fmt"
	"slices"
	"strings"
)

var (
	blocksA = [NumStages]int{2, 4, 14, 1}
	blocksB = [NumStages]int{4, 6, 16, 1}
)

// groupEvery returns an override map putting groups on layers 2, 4, ..., 26.
func groupEvery(groups int) map[int]int {
	m := make(map[int]int, 13)
	for layer := 2; layer <= 26; layer += 2 {
		m[layer] = groups
	}
	return m
}

func preset(name string, blocks [NumStages]int, width [NumStages]float64, groups map[int]int, numClasses int) NetworkConfig {
	return NetworkConfig{
		Name:            name,
		NumBlocks:       blocks,
		WidthMultiplier: width,
		OverrideGroups:  groups,
		NumClasses:      numClasses,
		InChannels:      3,
	}
}

// A0 returns the RepVGG-A0 configuration.
func A0(numClasses int) NetworkConfig {
	return preset("RepVGG-A0", blocksA, [NumStages]float64{0.75, 0.75, 0.75, 2.5}, nil, numClasses)
}

// A1 returns the RepVGG-A1 configuration.
func A1(numClasses int) NetworkConfig {
	return preset("RepVGG-A1", blocksA, [NumStages]float64{1, 1, 1, 2.5}, nil, numClasses)
}

// A2 returns the RepVGG-A2 configuration.
func A2(numClasses int) NetworkConfig {
	return preset("RepVGG-A2", blocksA, [NumStages]float64{1.5, 1.5, 1.5, 2.75}, nil, numClasses)
}

// B0 returns the RepVGG-B0 configuration.
func B0(numClasses int) NetworkConfig {
	return preset("RepVGG-B0", blocksB, [NumStages]float64{1, 1, 1, 2.5}, nil, numClasses)
}

// B1 returns the RepVGG-B1 configuration.
func B1(numClasses int) NetworkConfig {
	return preset("RepVGG-B1", blocksB, [NumStages]float64{2, 2, 2, 4}, nil, numClasses)
}

// B1g2 returns RepVGG-B1 with two groups on every even layer.
func B1g2(numClasses int) NetworkConfig {
	return preset("RepVGG-B1g2", blocksB, [NumStages]float64{2, 2, 2, 4}, groupEvery(2), numClasses)
}

// B1g4 returns RepVGG-B1 with four groups on every even layer.
func B1g4(numClasses int) NetworkConfig {
	return preset("RepVGG-B1g4", blocksB, [NumStages]float64{2, 2, 2, 4}, groupEvery(4), numClasses)
}

var presets = map[string]func(int) NetworkConfig{
	"RepVGG-A0":   A0,
	"RepVGG-A1":   A1,
	"RepVGG-A2":   A2,
	"RepVGG-B0":   B0,
	"RepVGG-B1":   B1,
	"RepVGG-B1g2": B1g2,
	"RepVGG-B1g4": B1g4,
}

// Preset returns the named configuration. Names are matched case-insensitively
// with or without the "RepVGG-" prefix ("RepVGG-A0", "a0").
func Preset(name string, numClasses int) (NetworkConfig, error) {
	key := strings.TrimPrefix(strings.ToLower(name), "repvgg-")
	for full, fn := range presets {
		if strings.ToLower(strings.TrimPrefix(full, "RepVGG-")) == key {
			return fn(numClasses), nil
		}
	}
	return NetworkConfig{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownPreset, name, strings.Join(PresetNames(), ", "))
}

// PresetNames returns the known preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
