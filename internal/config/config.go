package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulse/syncd/internal/logger"
)

// loadEnv читает .env только вне production (в контейнере/prod конфиг только из env).
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		path := dir + "/.env"
		f, err := os.Open(path)
		if err == nil {
			loadEnvFrom(f)
			f.Close()
			return
		}
		parent := strings.TrimSuffix(dir, "/")
		if idx := strings.LastIndex(parent, "/"); idx <= 0 {
			return
		} else {
			dir = parent[:idx]
			if dir == "" {
				dir = "/"
			}
		}
	}
}

func loadEnvFrom(f *os.File) {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// RedisConfig — Redis для локального кеша снапшотов (диалоги, уведомления).
type RedisConfig struct {
	URL string `yaml:"url"`
}

// CacheConfig — настройки кеша снапшотов.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// Config содержит настройки клиентского демона синхронизации.
// Приоритет: переменные окружения > YAML-файл > значения по умолчанию.
type Config struct {
	// GatewayURL — базовый URL REST API (сообщения, уведомления).
	GatewayURL string `yaml:"gateway_url"`
	// ChannelURL — URL push-канала (ws:// или wss://).
	ChannelURL string `yaml:"channel_url"`

	// BridgeAddr — адрес локального HTTP-моста для UI.
	BridgeAddr string `yaml:"bridge_addr"`
	// CORSAllowedOrigins — origins для UI-моста (через запятую или "*").
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`

	// Канал
	ReconnectDelay time.Duration `yaml:"-"`
	MaxReconnects  int           `yaml:"max_reconnects"`
	EmitBufferSize int           `yaml:"emit_buffer_size"`
	WriteTimeout   time.Duration `yaml:"-"`
	PongTimeout    time.Duration `yaml:"-"`
	MaxMessageSize int64         `yaml:"-"`

	// Индикатор набора текста
	TypingTTL time.Duration `yaml:"-"`

	// Пагинация по умолчанию
	PageLimit int `yaml:"page_limit"`

	// Логирование
	LogLevel string `yaml:"log_level"`

	Redis RedisConfig `yaml:"-"`
	Cache CacheConfig `yaml:"-"`
}

// yamlConfig — промежуточная структура для парсинга YAML (длительности в секундах).
type yamlConfig struct {
	GatewayURL         string `yaml:"gateway_url"`
	ChannelURL         string `yaml:"channel_url"`
	BridgeAddr         string `yaml:"bridge_addr"`
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`
	ReconnectDelay     int    `yaml:"reconnect_delay"`
	MaxReconnects      int    `yaml:"max_reconnects"`
	EmitBufferSize     int    `yaml:"emit_buffer_size"`
	WriteTimeout       int    `yaml:"write_timeout"`
	PongTimeout        int    `yaml:"pong_timeout"`
	MaxMessageSizeKB   int    `yaml:"max_message_size_kb"`
	TypingTTLMS        int    `yaml:"typing_ttl_ms"`
	PageLimit          int    `yaml:"page_limit"`
	LogLevel           string `yaml:"log_level"`
	CacheTTLMinutes    int    `yaml:"cache_ttl_minutes"`
}

// Load загружает конфигурацию.
// Сначала подгружаются переменные из .env (если есть), затем YAML и env (env имеет приоритет).
func Load() *Config {
	loadEnv()
	// Значения по умолчанию
	yc := yamlConfig{
		GatewayURL:         "http://localhost:8080",
		ChannelURL:         "ws://localhost:8080/ws",
		BridgeAddr:         "127.0.0.1:7077",
		CORSAllowedOrigins: "*",
		ReconnectDelay:     3,
		MaxReconnects:      0, // 0 — без ограничения
		EmitBufferSize:     256,
		WriteTimeout:       10,
		PongTimeout:        60,
		MaxMessageSizeKB:   64,
		TypingTTLMS:        3000,
		PageLimit:          20,
		LogLevel:           "info",
		CacheTTLMinutes:    10,
	}

	paths := []string{os.Getenv("CONFIG_PATH"), "config/client.yaml"}
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}

	cacheTTL := envInt("CACHE_TTL_MINUTES", yc.CacheTTLMinutes)
	if cacheTTL <= 0 {
		cacheTTL = 10
	}

	cfg := &Config{
		GatewayURL:         strings.TrimSuffix(envStr("GATEWAY_URL", yc.GatewayURL), "/"),
		ChannelURL:         envStr("CHANNEL_URL", yc.ChannelURL),
		BridgeAddr:         envStr("BRIDGE_ADDR", yc.BridgeAddr),
		CORSAllowedOrigins: envStr("CORS_ALLOWED_ORIGINS", yc.CORSAllowedOrigins),
		ReconnectDelay:     time.Duration(envInt("RECONNECT_DELAY", yc.ReconnectDelay)) * time.Second,
		MaxReconnects:      envInt("MAX_RECONNECTS", yc.MaxReconnects),
		EmitBufferSize:     envInt("EMIT_BUFFER_SIZE", yc.EmitBufferSize),
		WriteTimeout:       time.Duration(envInt("WRITE_TIMEOUT", yc.WriteTimeout)) * time.Second,
		PongTimeout:        time.Duration(envInt("PONG_TIMEOUT", yc.PongTimeout)) * time.Second,
		MaxMessageSize:     int64(envInt("MAX_MESSAGE_SIZE_KB", yc.MaxMessageSizeKB)) << 10,
		TypingTTL:          time.Duration(envInt("TYPING_TTL_MS", yc.TypingTTLMS)) * time.Millisecond,
		PageLimit:          envInt("PAGE_LIMIT", yc.PageLimit),
		LogLevel:           envStr("LOG_LEVEL", yc.LogLevel),
		Redis:              RedisConfig{URL: envStr("REDIS_URL", "redis://localhost:6379")},
		Cache:              CacheConfig{TTLMinutes: cacheTTL},
	}

	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = 3 * time.Second
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 20
	}

	return cfg
}

// envStr возвращает значение переменной окружения или fallback.
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt возвращает числовое значение переменной окружения или fallback.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
