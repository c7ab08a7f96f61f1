package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var (
	daemonBase string
	natsURL    string
)

func main() {
	root := &cobra.Command{
		Use:   "arcadectl",
		Short: "Operator CLI for the arcade daemon",
	}
	root.PersistentFlags().StringVar(&daemonBase, "daemon", "http://localhost:8080", "arcaded base URL")
	root.PersistentFlags().StringVar(&natsURL, "nats", "nats://localhost:4222", "NATS broker URL")

	root.AddCommand(pingCmd(), checkCmd(), playCmd(), abortCmd(), statusCmd(), bestsCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the daemon is up",
		RunE: func(*cobra.Command, []string) error {
			resp, err := http.Get(daemonBase + "/ping")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, err = io.Copy(os.Stdout, resp.Body)
			return err
		},
	}
}

func checkCmd() *cobra.Command {
	var (
		devices   []string
		timeoutS  float64
		visual    string
		noReset   bool
		noPrepare bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the aggregated readiness check",
		RunE: func(*cobra.Command, []string) error {
			req := map[string]interface{}{
				"devices":    devices,
				"timeout_s":  timeoutS,
				"visual":     visual,
				"no_reset":   noReset,
				"no_prepare": noPrepare,
			}
			var res struct {
				OK    bool `json:"ok"`
				Steps []struct {
					Name    string `json:"name"`
					OK      bool   `json:"ok"`
					Message string `json:"message"`
				} `json:"steps"`
			}
			if err := postJSON("/check", req, &res); err != nil {
				return err
			}
			for _, s := range res.Steps {
				mark := "FAIL"
				if s.OK {
					mark = "ok"
				}
				fmt.Printf("%-8s %-6s %s\n", s.Name, mark, s.Message)
			}
			if !res.OK {
				return fmt.Errorf("readiness check failed")
			}
			fmt.Println("all steps passed")
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&devices, "devices", nil, "device ids to check (default: daemon's fleet)")
	cmd.Flags().Float64Var(&timeoutS, "timeout", 10, "seconds to wait for acks")
	cmd.Flags().StringVar(&visual, "visual", "", "visual cue for the prepare broadcast")
	cmd.Flags().BoolVar(&noReset, "no-reset", false, "skip the reset broadcast")
	cmd.Flags().BoolVar(&noPrepare, "no-prepare", false, "skip the prepare broadcast")
	return cmd
}

func playCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start a game session from the metadata handoff",
		RunE: func(*cobra.Command, []string) error {
			var res map[string]interface{}
			if err := postJSON("/play", nil, &res); err != nil {
				return err
			}
			fmt.Printf("response: %v\n", res)

			// Best-effort CLI event, same as the daemon's own publishes.
			nc, err := nats.Connect(natsURL)
			if err == nil {
				defer nc.Drain()
				ev := map[string]interface{}{"event": "cli.play", "session_id": res["session_id"]}
				b, _ := json.Marshal(ev)
				_ = nc.Publish("cli.events", b)
			}
			return nil
		},
	}
	return cmd
}

func abortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort",
		Short: "Abort the running session",
		RunE: func(*cobra.Command, []string) error {
			var res map[string]interface{}
			if err := postJSON("/abort", nil, &res); err != nil {
				return err
			}
			fmt.Printf("response: %v\n", res)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session state",
		RunE: func(*cobra.Command, []string) error {
			resp, err := http.Get(daemonBase + "/status")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, err = io.Copy(os.Stdout, resp.Body)
			return err
		},
	}
}

func bestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bests",
		Short: "List best scores",
		RunE: func(*cobra.Command, []string) error {
			resp, err := http.Get(daemonBase + "/bests")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, err = io.Copy(os.Stdout, resp.Body)
			return err
		},
	}
}

func postJSON(path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := http.Post(daemonBase+path, "application/json", &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
