package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadGatewayConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gateway.yml", `
http_listen_addr: ":8080"
database:
  dsn: "postgres://localhost/cchain"
chain:
  guard: "compare-append"
kafka_producer:
  brokers: ["localhost:9092"]
  topic: "commit-events"
`)

	cfg, err := LoadGatewayConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HttpListenAddr)
	assert.Equal(t, "compare-append", cfg.Chain.Guard)
	// Defaults filled in for unset fields.
	assert.Equal(t, 20, cfg.Database.MaxConnections)
	assert.Equal(t, 2, cfg.Database.MinConnections)
}

func TestLoadGatewayConfigRequiresListenAddr(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gateway.yml", `
database:
  dsn: "postgres://localhost/cchain"
`)

	_, err := LoadGatewayConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http_listen_addr")
}

func TestLoadGatewayConfigRejectsBadGuard(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gateway.yml", `
http_listen_addr: ":8080"
database:
  dsn: "postgres://localhost/cchain"
chain:
  guard: "optimistic"
`)

	_, err := LoadGatewayConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain.guard")
}

func TestLoadEngineConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "engine.yml", `
database:
  dsn: "postgres://localhost/cchain"
kafka_consumer:
  brokers: ["localhost:9092"]
  topic: "commit-events"
  group_id: "cchain-engine"
`)

	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.KafkaConsumer.Count)
	assert.Equal(t, "30s", cfg.KafkaConsumer.SessionTimeout)
	assert.Equal(t, "earliest", cfg.KafkaConsumer.AutoOffsetReset)
	assert.Equal(t, 1, cfg.Worker.Concurrency)
	assert.Equal(t, 50, cfg.Worker.BatchSize)
	assert.Equal(t, "none", cfg.Chain.Guard)
}

func TestLoadEngineConfigRequiresDSN(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "engine.yml", `
kafka_consumer:
  brokers: ["localhost:9092"]
`)

	_, err := LoadEngineConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN")
}

func TestLoadConfigDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "gateway.defaults.yml", `
http_listen_addr: ":8080"
database:
  dsn: "postgres://localhost/cchain"
`)
	writeFile(t, dir, "engine.defaults.yml", `
database:
  dsn: "postgres://localhost/cchain"
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg.Gateway)
	require.NotNil(t, cfg.Engine)
}

func TestLoadConfigMissingFilesIsNotFatal(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg.Gateway)
	assert.Nil(t, cfg.Engine)
}
