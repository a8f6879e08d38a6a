package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	Backend BackendConfig
	Session SessionConfig
	Sim     SimConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

// HTTPConfig configuración del servidor HTTP del dashboard.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BackendConfig configuración del backend de productos (colaborador externo).
// Transport elige el canal push: por ahora solo "sse" (GET <BaseURL><StreamPath>).
type BackendConfig struct {
	BaseURL    string // ej. http://localhost:5000/api
	Transport  string // "sse"
	StreamPath string // ej. /products/stream
}

// SessionConfig configuración de la cookie de sesión y de las rutas protegidas.
// ProtectedPaths son prefijos: una petición sin cookie a cualquiera de ellos
// redirige a LoginPath con ?redirect=<ruta original>.
type SessionConfig struct {
	CookieName     string
	LoginPath      string
	ProtectedPaths []string
}

// SimConfig configuración del simulador de backend local (cmd/backend-sim).
type SimConfig struct {
	Host          string
	Port          int
	JWTSecret     string
	JWTExpMinutes int
	Issuer        string
	AdminEmail    string
	AdminPassword string // se hashea con bcrypt al arrancar; nunca se persiste
}

// Addr devuelve la dirección de escucha del simulador.
func (c SimConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad sobre el archivo; los flags (si se pasan) sobre todo lo demás.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Opcional: archivo de configuración (.env o config.env)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Env:  getString(v, "APP_ENV", "development"),
			Name: getString(v, "APP_NAME", "eagle3d-dashboard"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 3000),
		},
		Backend: BackendConfig{
			BaseURL:    getString(v, "BACKEND_BASE_URL", "http://localhost:5000/api"),
			Transport:  getString(v, "BACKEND_TRANSPORT", "sse"),
			StreamPath: getString(v, "BACKEND_STREAM_PATH", "/products/stream"),
		},
		Session: SessionConfig{
			CookieName:     getString(v, "SESSION_COOKIE_NAME", "session"),
			LoginPath:      getString(v, "LOGIN_PATH", "/login"),
			ProtectedPaths: getSlice(v, "PROTECTED_PATHS", []string{"/products", "/analytics", "/logout", "/app"}),
		},
		Sim: SimConfig{
			Host:          getString(v, "SIM_HOST", "0.0.0.0"),
			Port:          getInt(v, "SIM_PORT", 5000),
			JWTSecret:     getString(v, "SIM_JWT_SECRET", ""),
			JWTExpMinutes: getInt(v, "SIM_JWT_EXPIRATION_MINUTES", 60),
			Issuer:        getString(v, "SIM_JWT_ISSUER", "eagle3d-backend-sim"),
			AdminEmail:    getString(v, "SIM_ADMIN_EMAIL", "admin@eagle3d.local"),
			AdminPassword: getString(v, "SIM_ADMIN_PASSWORD", ""),
		},
	}

	if cfg.Backend.Transport != "sse" {
		return nil, fmt.Errorf("config: BACKEND_TRANSPORT no soportado: %q", cfg.Backend.Transport)
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		return v.GetInt(key)
	}
	return def
}

// getSlice acepta lista separada por comas (env) o lista nativa (archivo/flag).
func getSlice(v *viper.Viper, key string, def []string) []string {
	if !v.IsSet(key) {
		return def
	}
	raw := v.GetStringSlice(key)
	if len(raw) == 1 && strings.Contains(raw[0], ",") {
		raw = strings.Split(raw[0], ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
