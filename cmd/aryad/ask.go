package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"Arya-Agent/internal/agent"
	"Arya-Agent/internal/intent"
	"Arya-Agent/internal/response"
	"Arya-Agent/sdk/go/arya"
)

var (
	askAction string
	askSource string
	askID     string
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message to the agent and print the reply",
	Long: `Run one message through the agent pipeline. By default the pipeline runs
in-process; with --remote the message is submitted to a running aryad and the
command waits for the job to finish.

Examples:
  aryad ask "Swap 10 ETH for LORDS"
  aryad ask "What is STRK price" --action price
  aryad ask "Get Twitch user satoshiwarlock" --source telegram
  aryad ask "What is ETH price" --remote http://localhost:8080 --api-key secret`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askAction, "action", "", "Workflow to run: swap, price, twitch or youtube (default: keyword routing)")
	askCmd.Flags().StringVar(&askSource, "source", "cli", "Message source, e.g. discord or telegram")
	askCmd.Flags().StringVar(&askID, "id", "", "Message id used for idempotent remote submission")
	askCmd.Flags().String("remote", "", "Base URL of a running aryad (env ARYA_REMOTE)")
	askCmd.Flags().String("api-key", "", "API key for --remote (env ARYA_API_KEY)")
	_ = viper.BindPFlag("remote", askCmd.Flags().Lookup("remote"))
	_ = viper.BindPFlag("api_key", askCmd.Flags().Lookup("api-key"))
}

// askResult 是 ask 命令统一的输出结构。
type askResult struct {
	ID        string             `json:"id,omitempty"`
	Status    string             `json:"status"`
	ErrorCode string             `json:"error_code,omitempty"`
	Reply     *response.Response `json:"reply,omitempty"`
	Elapsed   string             `json:"elapsed"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var action intent.Action
	if askAction != "" {
		parsed, err := intent.ParseAction(askAction)
		if err != nil {
			return err
		}
		action = parsed
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Thinking..."
		s.Start()
	}

	start := time.Now()
	var (
		result askResult
		err    error
	)
	if remote := viper.GetString("remote"); remote != "" {
		result, err = askRemote(cmd.Context(), remote, text, action)
	} else {
		result, err = askLocal(cmd.Context(), text, action)
	}
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}
	result.Elapsed = time.Since(start).Round(time.Millisecond).String()

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	printReply(result)
	return nil
}

func askLocal(ctx context.Context, text string, action intent.Action) (askResult, error) {
	cfg, err := loadConfig()
	if err != nil {
		return askResult{}, err
	}
	ag, cleanup, err := buildAgent(ctx, cfg)
	if err != nil {
		return askResult{}, err
	}
	defer cleanup()

	reply, handleErr := ag.Handle(ctx, agent.Message{ID: askID, Text: text, Action: action, Source: askSource})
	result := askResult{ID: askID, Status: arya.StatusSucceeded, Reply: reply}
	if handleErr != nil {
		result.Status = arya.StatusFailed
		result.ErrorCode = codeOf(handleErr)
	}
	return result, nil
}

func askRemote(ctx context.Context, baseURL, text string, action intent.Action) (askResult, error) {
	client, err := arya.NewClient(baseURL, arya.WithAPIKey(viper.GetString("api_key")))
	if err != nil {
		return askResult{}, err
	}
	job, err := client.SubmitMessage(ctx, arya.Message{ID: askID, Text: text, Action: string(action), Source: askSource}, true)
	if err != nil {
		return askResult{}, err
	}
	if !job.Done() {
		job, err = client.WaitForMessage(ctx, job.ID, time.Second)
		if err != nil {
			return askResult{}, err
		}
	}
	result := askResult{ID: job.ID, Status: job.Status, ErrorCode: job.ErrorCode}
	if job.Reply != nil {
		result.Reply = &response.Response{Text: job.Reply.Text}
		if a := job.Reply.Attachment; a != nil {
			result.Reply.Attachment = &response.Attachment{
				ID:          a.ID,
				URL:         a.URL,
				Title:       a.Title,
				Source:      a.Source,
				Description: a.Description,
				Text:        a.Text,
				ContentType: a.ContentType,
			}
		}
	}
	return result, nil
}

func printReply(result askResult) {
	label := color.New(color.FgGreen, color.Bold)
	if result.Status == arya.StatusFailed {
		label = color.New(color.FgRed, color.Bold)
	}
	fmt.Println()
	if result.ErrorCode != "" {
		label.Printf("Arya [%s]: ", result.ErrorCode)
	} else {
		label.Print("Arya: ")
	}
	if result.Reply != nil {
		fmt.Println(result.Reply.Text)
		if a := result.Reply.Attachment; a != nil {
			dim := color.New(color.FgHiBlack)
			dim.Printf("  %s (%s)\n", a.Title, a.Source)
			if a.URL != "" {
				dim.Printf("  %s\n", a.URL)
			}
		}
	} else {
		fmt.Println("(no reply)")
	}
	color.New(color.FgHiBlack).Printf("\n%s in %s\n\n", result.Status, result.Elapsed)
}
