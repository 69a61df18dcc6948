// aulakeyctl es el CLI de operación contra el API de aulakey.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alumbra-io/aulakey/internal/security/password"
	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte, headers map[string]string) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("AULAKEY_URL", "http://localhost:8080")
		token   = envOr("AULAKEY_TOKEN", "")
		out     = envOr("AULAKEY_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "aulakeyctl",
		Short: "CLI de operación para el servicio de autenticación aulakey",
	}

	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env AULAKEY_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "Access token (env AULAKEY_TOKEN)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}
	syncClient := func() {
		cl.BaseURL = baseURL
		cl.Token = token
		cl.OutFormat = out
	}

	// login
	var username, pass string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Emite un par access+refresh con usuario y password",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			body, _ := json.Marshal(map[string]string{
				"grant_type": "password",
				"username":   username,
				"password":   pass,
			})
			status, resp, err := cl.do("POST", "/v1/auth/token", body, nil)
			if err != nil {
				return err
			}
			cl.print(status, resp)
			return nil
		},
	}
	loginCmd.Flags().StringVar(&username, "username", "", "email del usuario")
	loginCmd.Flags().StringVar(&pass, "password", "", "password del usuario")
	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")

	// refresh
	var refreshToken string
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rota un refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			body, _ := json.Marshal(map[string]string{
				"grant_type":    "refresh_token",
				"refresh_token": refreshToken,
			})
			status, resp, err := cl.do("POST", "/v1/auth/token", body, nil)
			if err != nil {
				return err
			}
			cl.print(status, resp)
			return nil
		},
	}
	refreshCmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token a rotar")
	_ = refreshCmd.MarkFlagRequired("refresh-token")

	// logout
	var logoutRefresh string
	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Invalida la sesión actual",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			var body []byte
			if logoutRefresh != "" {
				body, _ = json.Marshal(map[string]string{"refresh_token": logoutRefresh})
			}
			status, resp, err := cl.do("POST", "/v1/auth/logout", body, nil)
			if err != nil {
				return err
			}
			cl.print(status, resp)
			return nil
		},
	}
	logoutCmd.Flags().StringVar(&logoutRefresh, "refresh-token", "", "refresh token a revocar (opcional)")

	// me
	meCmd := &cobra.Command{
		Use:   "me",
		Short: "Introspecciona el access token actual",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, resp, err := cl.do("GET", "/v1/auth/me", nil, nil)
			if err != nil {
				return err
			}
			cl.print(status, resp)
			return nil
		},
	}

	// grupo keys
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Gestión de API keys",
	}

	var keyName string
	var keyScopes []string
	var keyExpires string
	keysCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Crea una API key (el secreto se muestra una sola vez)",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			payload := map[string]any{"name": keyName, "scopes": keyScopes}
			if keyExpires != "" {
				d, err := time.ParseDuration(keyExpires)
				if err != nil {
					return fmt.Errorf("--expires-in inválido: %w", err)
				}
				payload["expires_at"] = time.Now().Add(d).UTC().Format(time.RFC3339)
			}
			body, _ := json.Marshal(payload)
			status, resp, err := cl.do("POST", "/v1/api-keys", body, nil)
			if err != nil {
				return err
			}
			cl.print(status, resp)
			return nil
		},
	}
	keysCreateCmd.Flags().StringVar(&keyName, "name", "", "nombre descriptivo de la key")
	keysCreateCmd.Flags().StringSliceVar(&keyScopes, "scopes", nil, "scopes otorgados (ej: courses:read,enrollments:read)")
	keysCreateCmd.Flags().StringVar(&keyExpires, "expires-in", "", "vida útil de la key (ej: 720h); vacío = sin vencimiento")
	_ = keysCreateCmd.MarkFlagRequired("name")
	_ = keysCreateCmd.MarkFlagRequired("scopes")

	keysListCmd := &cobra.Command{
		Use:   "list",
		Short: "Lista las keys del usuario autenticado",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, resp, err := cl.do("GET", "/v1/api-keys", nil, nil)
			if err != nil {
				return err
			}
			cl.print(status, resp)
			return nil
		},
	}

	keysRevokeCmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoca una API key por id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, resp, err := cl.do("DELETE", "/v1/api-keys/"+args[0], nil, nil)
			if err != nil {
				return err
			}
			cl.print(status, resp)
			return nil
		},
	}

	var rawKey string
	keysValidateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Valida una API key contra el servicio",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, resp, err := cl.do("GET", "/v1/api-keys/validate", nil, map[string]string{"X-API-Key": rawKey})
			if err != nil {
				return err
			}
			cl.print(status, resp)
			return nil
		},
	}
	keysValidateCmd.Flags().StringVar(&rawKey, "key", "", "API key cruda (ak_...)")
	_ = keysValidateCmd.MarkFlagRequired("key")

	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd, keysValidateCmd)

	// hash: utilitario local para sembrar usuarios
	hashCmd := &cobra.Command{
		Use:   "hash <password>",
		Short: "Genera un hash argon2id para cargar usuarios a mano",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := password.Hash(password.Default, args[0])
			if err != nil {
				return err
			}
			fmt.Println(h)
			return nil
		},
	}

	root.AddCommand(loginCmd, refreshCmd, logoutCmd, meCmd, keysCmd, hashCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
