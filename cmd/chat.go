package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alantheprice/yardcheck/pkg/chat"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
	"github.com/alantheprice/yardcheck/pkg/prompts"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

var (
	chatBefore         string
	chatAfter          []string
	chatReport         string
	chatTasks          string
	chatNotes          string
	chatBeforeAnalysis string
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask follow-up questions about an inspection",
	Long: `Answers questions about a project. Questions that mention a photo are sent
to the vision model with that photo attached; the rest go to the text model.

With a question argument, answers once and exits. Otherwise reads questions
from stdin, one per line, keeping the conversation history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		before, err := loadImage(chatBefore)
		if err != nil {
			return err
		}
		after, err := loadImages(chatAfter)
		if err != nil {
			return err
		}
		var chatCtx prompts.ChatContext
		if chatCtx.Report, err = readTextArg(chatReport); err != nil {
			return err
		}
		if chatCtx.Tasks, err = readTextArg(chatTasks); err != nil {
			return err
		}
		if chatCtx.ContractorNotes, err = readTextArg(chatNotes); err != nil {
			return err
		}
		if chatCtx.BeforeAnalysis, err = readTextArg(chatBeforeAnalysis); err != nil {
			return err
		}

		svc, err := newServices()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		session := &chatSession{
			service: svc.chat,
			images:  chat.Images{Before: before, After: after},
			context: chatCtx,
		}
		if len(args) > 0 {
			return session.ask(ctx, os.Stdout, strings.Join(args, " "))
		}

		interactive := utils.IsInteractive(os.Stdin)
		if interactive {
			fmt.Println(prompts.ChatWelcome(svc.cfg.TextModel))
		}
		return session.loop(ctx, os.Stdin, os.Stdout, interactive)
	},
}

// chatSession carries the conversation history between questions.
type chatSession struct {
	service *chat.Service
	images  chat.Images
	context prompts.ChatContext
	history []chat.Turn
}

func (s *chatSession) loop(ctx context.Context, in io.Reader, out io.Writer, interactive bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := s.ask(ctx, out, question); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "Error (%s): %v\n", api.Class(err), err)
		}
	}
}

func (s *chatSession) ask(ctx context.Context, out io.Writer, question string) error {
	answer, err := s.service.Ask(ctx, chat.Query{
		Question: question,
		Images:   s.images,
		Context:  s.context,
		History:  s.history,
	})
	if err != nil {
		return err
	}
	s.history = append(s.history,
		chat.Turn{Role: string(api.RoleUser), Content: question},
		chat.Turn{Role: string(api.RoleAssistant), Content: answer.Text},
	)

	source := answer.Model
	if answer.Decision.UsesVision() {
		source += ", looked at " + answer.UsedImage
	}
	fmt.Fprintf(out, "%s\n[%s]\n", strings.TrimSpace(answer.Text), source)
	return nil
}

func init() {
	chatCmd.Flags().StringVarP(&chatBefore, "before", "b", "", "before image file")
	chatCmd.Flags().StringArrayVarP(&chatAfter, "after", "a", nil, "after image file (repeatable)")
	chatCmd.Flags().StringVarP(&chatReport, "report", "r", "", "latest report text, or @file")
	chatCmd.Flags().StringVarP(&chatTasks, "tasks", "t", "", "requested tasks, or @file")
	chatCmd.Flags().StringVarP(&chatNotes, "notes", "n", "", "contractor's summary, or @file")
	chatCmd.Flags().StringVar(&chatBeforeAnalysis, "before-analysis", "", "saved before image analysis, or @file")
}
