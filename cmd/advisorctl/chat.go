package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/advisor/internal/api"
	"github.com/coder/websocket"
	"github.com/spf13/cobra"
)

const exitCommand = "exit"

// chatCmd runs the interactive chat
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the advisor",
	Long: `Open an interactive advising chat. Each line is sent as one turn and the
reply is printed with its cited sources. Type "exit" to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(serverURL, userID, sessionID)
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), c, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// chatFrame is a server frame on the advisor websocket.
type chatFrame struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
	api.ChatResponse
}

func runChat(ctx context.Context, c *client, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := c.dialChat(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	fmt.Fprintln(out, headerStyle.Render("advisor · session "+c.sessionID))
	fmt.Fprintln(out, statusStyle.Render(`Type "exit" to quit.`))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptStyle.Render("User>")+" ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, exitCommand):
			return nil
		}

		frame, err := sendTurn(ctx, conn, line)
		if err != nil {
			return err
		}
		printFrame(out, frame)
	}
}

// sendTurn writes one message and waits for its reply or error frame.
func sendTurn(ctx context.Context, conn *websocket.Conn, message string) (chatFrame, error) {
	data, err := json.Marshal(api.ChatRequest{Message: message})
	if err != nil {
		return chatFrame{}, err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return chatFrame{}, fmt.Errorf("send message: %w", err)
	}
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return chatFrame{}, fmt.Errorf("read reply: %w", err)
		}
		var f chatFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return chatFrame{}, fmt.Errorf("decode reply: %w", err)
		}
		if f.Type == "reply" || f.Type == "error" {
			return f, nil
		}
	}
}

func printFrame(out io.Writer, f chatFrame) {
	if f.Type == "error" {
		fmt.Fprintln(out, errorStyle.Render("error: "+f.Error))
		return
	}
	fmt.Fprintln(out, advisorStyle.Render("Advisor>")+" "+f.Reply)
	for _, s := range f.Sources {
		fmt.Fprintln(out, sourceStyle.Render(fmt.Sprintf("  [%s] %s", s.ID, s.Source)))
	}
	fmt.Fprintln(out, statusStyle.Render(statusLine(f.ChatResponse)))
}

func statusLine(r api.ChatResponse) string {
	var b strings.Builder
	b.WriteString(string(r.Topic))
	if r.Stage != "" {
		b.WriteString(" / " + string(r.Stage))
	}
	fmt.Fprintf(&b, " · %d%% complete", r.PercentComplete)
	if len(r.MissingFields) > 0 {
		b.WriteString(" · missing: " + strings.Join(r.MissingFields, ", "))
	}
	return b.String()
}
