package config

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return values, scanner.Err()
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// ApplyFileConfig applies file configuration to a Config struct. Unknown
// keys are ignored.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	fields := confFields(cfg)
	for key, value := range values {
		if alias, ok := keyAliases[key]; ok {
			key = alias
		}
		field, ok := fields[key]
		if !ok {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	cfg.Network = NetworkType(strings.ToLower(string(cfg.Network)))
	cfg.DB.Backend = strings.ToLower(cfg.DB.Backend)
	return nil
}

// keyAliases are short spellings accepted in the file.
var keyAliases = map[string]string{
	"deploy": "deploy.file",
	"rpc":    "rpc.enabled",
}

// confFields maps every `conf` tag reachable from cfg to its settable field.
func confFields(cfg *Config) map[string]reflect.Value {
	out := make(map[string]reflect.Value)
	walkConf(reflect.ValueOf(cfg).Elem(), func(key string, v reflect.Value) {
		out[key] = v
	})
	return out
}

// walkConf visits tagged fields in declaration order, descending into
// untagged struct fields.
func walkConf(v reflect.Value, visit func(key string, v reflect.Value)) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f, fv := t.Field(i), v.Field(i)
		if key, ok := f.Tag.Lookup("conf"); ok {
			visit(key, fv)
			continue
		}
		if fv.Kind() == reflect.Struct {
			walkConf(fv, visit)
		}
	}
}

func setField(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := parseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int:
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		v.SetInt(int64(n))
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported list type %s", v.Type())
		}
		v.Set(reflect.ValueOf(parseStringList(s)))
	default:
		return fmt.Errorf("unsupported type %s", v.Type())
	}
	return nil
}

func formatField(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Slice:
		return strings.Join(v.Interface().([]string), ",")
	default:
		return v.String()
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// confHelp is written above each key in a generated config file.
var confHelp = map[string]string{
	"network":     "mainnet or testnet",
	"datadir":     "Data directory (default: ~/.mysterybox)",
	"deploy.file": "Deployment JSON (default: <datadir>/<network>/deployment.json)",
	"db.backend":  "State backend: badger, bolt or memory",
	"rpc.allowed": "Client IPs or CIDRs allowed to call the RPC server",
	"rpc.cors":    `CORS allowed origins ("*" for all)`,
}

// WriteDefaultConfig writes the defaults for network as a config file.
// Keys whose default is empty, and datadir, are written commented out.
func WriteDefaultConfig(path string, network NetworkType) error {
	var b strings.Builder
	b.WriteString("# Mystery Box Node Configuration\n#\n")
	b.WriteString("# Node settings only. Contract constants (price, capacity, royalty)\n")
	b.WriteString("# live in the deployment file and are fixed once deployed.\n")

	section := ""
	walkConf(reflect.ValueOf(Default(network)).Elem(), func(key string, v reflect.Value) {
		if s, _, ok := strings.Cut(key, "."); ok && s != section {
			section = s
			fmt.Fprintf(&b, "\n# ── %s ──\n", s)
		}
		b.WriteString("\n")
		if help, ok := confHelp[key]; ok {
			fmt.Fprintf(&b, "# %s\n", help)
		}
		value := formatField(v)
		if value == "" || key == "datadir" {
			fmt.Fprintf(&b, "# %s = %s\n", key, value)
			return
		}
		fmt.Fprintf(&b, "%s = %s\n", key, value)
	})
	return os.WriteFile(path, []byte(b.String()), 0644)
}
