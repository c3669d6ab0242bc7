package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/yusukekikuta0509/projectKAIKA/internal/config"
	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/scene"
	"github.com/yusukekikuta0509/projectKAIKA/internal/services"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCatalogCommand(t *testing.T) {
	out, err := execute(t, "catalog", "--category", "abstract", "--json")
	require.NoError(t, err)

	var feelings []models.Feeling
	require.NoError(t, json.Unmarshal([]byte(out), &feelings))
	require.Len(t, feelings, 2)
	assert.Equal(t, "quantum_flow", feelings[0].ID)
	assert.Equal(t, models.USDC(12.5), feelings[0].Price)

	out, err = execute(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "tokyo_asphalt")
	assert.Contains(t, out, "8.00 USDC")

	_, err = execute(t, "catalog", "--category", "space")
	assert.Error(t, err)
}

func TestCatalogCommandFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "catalog.json")
	custom := []models.Feeling{{ID: "snow", Name: "Snow", Description: "Fresh powder.", Price: models.USDC(3), Category: models.CategoryNature, Intensity: 4, Attributes: models.FeelingAttributes{Texture: 3, Pressure: 2, Temperature: 1}}}
	data, err := json.Marshal(custom)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, data, 0644))

	out, err := execute(t, "catalog", "--file", file, "--json")
	require.NoError(t, err)
	var feelings []models.Feeling
	require.NoError(t, json.Unmarshal([]byte(out), &feelings))
	require.Len(t, feelings, 1)
	assert.Equal(t, "snow", feelings[0].ID)
}

func TestRewardCommand(t *testing.T) {
	out, err := execute(t, "reward", "--duration", "30s", "--json")
	require.NoError(t, err)
	var result struct {
		Reward int64 `json:"reward_kaika"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, int64(9), result.Reward)

	out, err = execute(t, "reward", "--duration", "1s")
	require.NoError(t, err)
	assert.Contains(t, out, "5 KAIKA")

	out, err = execute(t, "reward", "--duration", "100s", "--distance", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "35 KAIKA")
}

func TestLayoutCommand(t *testing.T) {
	out, err := execute(t, "layout", "--seed", "42", "--json")
	require.NoError(t, err)
	var result struct {
		Seed   uint64         `json:"seed"`
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, uint64(42), result.Seed)
	assert.Equal(t, scene.RoadCount(), result.Counts["roads"])
	assert.Equal(t, scene.BuildingCount, result.Counts["buildings"])
}

func TestTuningCommand(t *testing.T) {
	out, err := execute(t, "tuning")
	require.NoError(t, err)

	var tuning config.Tuning
	require.NoError(t, yaml.Unmarshal([]byte(out), &tuning))
	assert.Equal(t, config.DefaultTuning(), tuning)
}

func TestSimulation(t *testing.T) {
	var out bytes.Buffer
	opts := simulateOptions{
		Speed:    0.001,
		Feeling:  "tokyo_asphalt",
		Terrain:  "city",
		LogLevel: "error",
	}
	tuning := services.NewConfigService(config.DefaultTuning().Scaled(opts.Speed), "", nil)
	sim := newSimulation(&out, opts, tuning, func(string) machine.Source { return machine.FixedSource(0.1) })
	defer sim.sessions.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, sim.run(ctx))

	text := out.String()
	assert.Contains(t, text, string(models.EventDeviceStatus))
	assert.Contains(t, text, string(models.EventPlaybackState))
	assert.Contains(t, text, string(models.EventSubmissionStatus))
	assert.Contains(t, text, "==> done: 42.00 USDC")

	balances := sim.session.Balances()
	assert.Equal(t, models.USDC(42), balances.USDC)
	assert.GreaterOrEqual(t, balances.KAIKA, int64(125+4+5))
}

func TestSimulateRejectsBadSpeed(t *testing.T) {
	_, err := execute(t, "simulate", "--speed", "0")
	assert.Error(t, err)
}
