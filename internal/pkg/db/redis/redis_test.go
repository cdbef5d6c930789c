package redis

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"ess-loan-gateway/internal/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedPEM(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"ESS Test"}},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	var certBuf, keyBuf bytes.Buffer
	require.NoError(t, pem.Encode(&certBuf, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, pem.Encode(&keyBuf, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	return certBuf.Bytes(), keyBuf.Bytes()
}

func TestBuildTLSConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("no cert content", func(t *testing.T) {
		tlsConfig, err := buildTLSConfig(ctx, config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, tlsConfig.RootCAs)
		assert.Nil(t, tlsConfig.Certificates)
	})

	t.Run("ca only", func(t *testing.T) {
		cert, _ := selfSignedPEM(t)
		tlsConfig, err := buildTLSConfig(ctx, config.RedisConfig{CertContent: string(cert)})
		require.NoError(t, err)
		assert.NotNil(t, tlsConfig.RootCAs)
		assert.Nil(t, tlsConfig.Certificates)
	})

	t.Run("client pair", func(t *testing.T) {
		cert, key := selfSignedPEM(t)
		tlsConfig, err := buildTLSConfig(ctx, config.RedisConfig{CertContent: string(cert) + "\n" + string(key)})
		require.NoError(t, err)
		assert.Len(t, tlsConfig.Certificates, 1)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := buildTLSConfig(ctx, config.RedisConfig{CertContent: "not a cert"})
		assert.ErrorContains(t, err, "failed to parse PEM content")
	})
}

func TestConnectToRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("connects to a live server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := ConnectToRedis(ctx, config.RedisConfig{Addr: mr.Addr(), ConnectTimeout: time.Second}, nil)
		require.NoError(t, err)
		assert.NoError(t, Disconnect(client.Client))
	})

	t.Run("ping failure", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		mock.ExpectPing().SetErr(errors.New("redis is down"))

		_, err := ConnectToRedis(ctx, config.RedisConfig{Addr: "localhost:6379"}, func(*redis.Options) *redis.Client { return db })
		assert.EqualError(t, err, "redis is down")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tls options reach the constructor", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		mock.ExpectPing().SetVal("PONG")
		cert, _ := selfSignedPEM(t)

		_, err := ConnectToRedis(ctx, config.RedisConfig{EnableTLS: true, CertContent: string(cert)}, func(opt *redis.Options) *redis.Client {
			require.NotNil(t, opt.TLSConfig)
			assert.NotNil(t, opt.TLSConfig.RootCAs)
			return db
		})
		require.NoError(t, err)
	})

	t.Run("bad tls content", func(t *testing.T) {
		_, err := ConnectToRedis(ctx, config.RedisConfig{EnableTLS: true, CertContent: "invalid"}, nil)
		assert.ErrorContains(t, err, "failed to build TLS config")
	})
}
