package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/maisonguida/chatbot/internal/model"
	"github.com/maisonguida/chatbot/internal/probe"
)

const defaultMessage = "Tell me about your dresses"

var testFlags struct {
	port    int
	message string
	host    string
	timeout time.Duration
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "test sends a message to a running backend and prints the reply",
	Args:  cobra.NoArgs,
	RunE:  doTest,
}

func init() {
	f := testCmd.Flags()
	f.IntVar(&testFlags.port, "port", model.DefaultBackendPort, "backend server port")
	f.StringVar(&testFlags.message, "message", defaultMessage, "test message to send")
	f.StringVar(&testFlags.host, "host", "localhost", "backend server host")
	f.DurationVar(&testFlags.timeout, "timeout", probe.DefaultTimeout, "request timeout")
}

func doTest(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	client, err := probe.NewClient(probe.ServerURL(testFlags.host, testFlags.port), testFlags.timeout)
	if err != nil {
		return err
	}

	rule := strings.Repeat("-", 50)
	fmt.Fprintln(out, "\nMaisonGuida AI Assistant Test")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Testing chatbot API at %s\n", client.URL())
	fmt.Fprintf(out, "Sending message: '%s'\n", testFlags.message)
	fmt.Fprintln(out, rule)

	spin := spinner.New(spinner.CharSets[21], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
	spin.Suffix = " Waiting for reply..."
	spin.Start()
	resp, err := client.Chat(cmd.Context(), testFlags.message)
	spin.Stop()

	if err != nil {
		printFailure(out, err)
		fmt.Fprintln(out, "\nTest failed. Please check the error messages above.")
		return err
	}

	reply := resp.Reply
	if reply == "" {
		reply = "No reply content"
	}
	fmt.Fprintln(out, "\nChatbot response received successfully!")
	fmt.Fprintf(out, "Response time: %.2fms\n", float64(resp.ResponseTime())/float64(time.Millisecond))
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Response: %s\n", reply)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "\nTest completed successfully!")
	return nil
}

func printFailure(out io.Writer, err error) {
	var statusErr *probe.StatusError
	switch {
	case errors.As(err, &statusErr):
		fmt.Fprintf(out, "\nError: Received status code %d\n", statusErr.Code)
		fmt.Fprintf(out, "Response: %s\n", statusErr.Body)
	case errors.Is(err, probe.ErrConnection):
		fmt.Fprintln(out, "\nConnection error: Could not connect to the backend server")
		fmt.Fprintln(out, "Make sure the backend server is running on the specified port")
	case errors.Is(err, probe.ErrTimeout):
		fmt.Fprintf(out, "\nError: No reply within %s\n", testFlags.timeout)
	default:
		fmt.Fprintf(out, "\nError: %s\n", err)
	}
}
