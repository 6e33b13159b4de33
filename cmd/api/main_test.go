package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/medspa-sms-triage/internal/config"
)

func TestLoadAWSSkippedWhenUnused(t *testing.T) {
	cfg := &appconfig.Config{ClassifierProvider: "keyword", AWSRegion: "us-east-1"}
	awsCfg, err := loadAWS(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, awsCfg)
}

func TestLoadAWSWhenQueueConfigured(t *testing.T) {
	cfg := &appconfig.Config{
		ClassifierProvider: "keyword",
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
		AlertQueueURL:      "http://localhost:4566/000000000000/alerts",
	}
	awsCfg, err := loadAWS(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, awsCfg)
	assert.Equal(t, "us-east-1", awsCfg.Region)
}

func TestNewServerTimeouts(t *testing.T) {
	srv := newServer(&appconfig.Config{Port: "9090"}, http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.Greater(t, srv.WriteTimeout, 20*time.Second)
}
