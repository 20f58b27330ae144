package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"crowdfund/cmd/internal/passphrase"
	"crowdfund/crypto"
	"crowdfund/rpc"
)

const (
	defaultPassEnv   = "CROWDFUND_KEYSTORE_PASS"
	defaultSecretEnv = "CROWDFUND_RPC_SECRET"
	defaultTokenEnv  = "CROWDFUND_RPC_TOKEN"
	defaultRPC       = "http://127.0.0.1:8545"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen(os.Args[2:], os.Stdout)
	case "address":
		err = runAddress(os.Args[2:], os.Stdout)
	case "token":
		err = runToken(os.Args[2:], os.Stdout)
	case "call":
		err = runCall(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: campaignctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  keygen   create a keystore file and print its principal address")
	fmt.Fprintln(w, "  address  print the principal address stored in a keystore")
	fmt.Fprintln(w, "  token    mint a bearer token for a principal")
	fmt.Fprintln(w, "  call     send a JSON-RPC request: call [flags] <method> [params-json]")
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := fs.String("out", "campaign.keystore", "Output path for the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	light := fs.Bool("light", false, "Use light scrypt parameters (testing only)")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("keystore %s already exists (use -force to overwrite)", *path)
	}
	pass, err := passphrase.NewSource(*passEnv).WithConfirmation().Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	strength := crypto.ScryptStandard
	if *light {
		strength = crypto.ScryptLight
	}
	if err := crypto.SaveToKeystore(*path, key, pass, strength); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	fmt.Fprintln(out, key.String())
	return nil
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	path := fs.String("keystore", "campaign.keystore", "Path to the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := keystoreAddress(*path, *passEnv)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, crypto.Format(crypto.PrincipalPrefix, addr))
	return nil
}

func keystoreAddress(path, passEnv string) ([20]byte, error) {
	pass, err := passphrase.NewSource(passEnv).Get()
	if err != nil {
		return [20]byte{}, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return [20]byte{}, fmt.Errorf("open keystore: %w", err)
	}
	return key.Principal(), nil
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "Principal address (cf1...) the token speaks for")
	keystorePath := fs.String("keystore", "", "Derive the subject from this keystore instead")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	secretEnv := fs.String("secret-env", defaultSecretEnv, "Environment variable containing the RPC HMAC secret")
	issuer := fs.String("issuer", "", "Token issuer claim")
	audience := fs.String("audience", "", "Token audience claim")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	secret := strings.TrimSpace(os.Getenv(*secretEnv))
	if secret == "" {
		return fmt.Errorf("%s must hold the RPC HMAC secret", *secretEnv)
	}
	var (
		who [20]byte
		err error
	)
	switch {
	case strings.TrimSpace(*subject) != "":
		who, err = crypto.ParsePrincipal(crypto.PrincipalPrefix, strings.TrimSpace(*subject))
	case *keystorePath != "":
		who, err = keystoreAddress(*keystorePath, *passEnv)
	default:
		err = errors.New("either -subject or -keystore is required")
	}
	if err != nil {
		return err
	}
	token, err := rpc.IssueToken([]byte(secret), who, *issuer, *audience, *ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func runCall(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	endpoint := fs.String("rpc", defaultRPC, "JSON-RPC endpoint")
	tokenEnv := fs.String("token-env", defaultTokenEnv, "Environment variable containing the bearer token")
	timeout := fs.Duration("timeout", 15*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: campaignctl call [flags] <method> [params-json]")
	}
	body, err := buildRequest(fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, *endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(os.Getenv(*tokenEnv)); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp.Body, out)
}

func buildRequest(method, params string) ([]byte, error) {
	payload := rpc.RPCRequest{JSONRPC: "2.0", Method: method, ID: 1}
	if strings.TrimSpace(params) != "" {
		if !json.Valid([]byte(params)) {
			return nil, fmt.Errorf("params must be a JSON object")
		}
		payload.Params = []json.RawMessage{json.RawMessage(params)}
	}
	return json.Marshal(payload)
}

func printResponse(body io.Reader, out io.Writer) error {
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpc.RPCError   `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.Result, "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')
	_, err := out.Write(pretty.Bytes())
	return err
}
