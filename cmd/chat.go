/*
Copyright © 2025 Dean
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"paperchat/src/core/rag"
	"paperchat/src/log"
	"paperchat/src/ollama"
)

var (
	chatIndexName string
	chatRAG       bool
	chatNoRAG     bool
	chatTopK      int
	chatTemp      float64
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your indexed documents",
	Long: `The chat command starts an interactive conversation with the
configured language model. Unless retrieval is disabled with --no-rag,
every question is answered with the most relevant indexed chunks as
context.

Type "exit" or "quit" to leave and "clear" to reset the conversation.
Ctrl-C during an answer cancels that answer only.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	settingDefaultConfig()

	chatCmd.Flags().StringVar(&chatIndexName, "index-name", "", "index to retrieve from (default from config)")
	chatCmd.Flags().BoolVar(&chatRAG, "rag", true, "ground answers in retrieved document chunks")
	chatCmd.Flags().BoolVar(&chatNoRAG, "no-rag", false, "answer from the model alone")
	chatCmd.Flags().IntVar(&chatTopK, "top-k", 0, "chunks to retrieve per question (default from config)")
	chatCmd.Flags().Float64Var(&chatTemp, "temperature", 0, "sampling temperature (default from config)")
}

func runChat(cmd *cobra.Command, args []string) error {
	indexName := chatIndexName
	if indexName == "" {
		indexName = viper.GetString("index.name")
	}
	topK := chatTopK
	if topK <= 0 {
		topK = viper.GetInt("search.top_k")
	}
	temperature := chatTemp
	if !cmd.Flags().Changed("temperature") {
		temperature = viper.GetFloat64("chat.temperature")
	}
	ragEnabled := chatRAG && !chatNoRAG

	client := buildOllamaClient()
	model := viper.GetString("ollama.chat_model")
	llm := ollama.NewLLM(client, model, pullProgressBar())

	var search *rag.SearchService
	if ragEnabled {
		var err error
		search, err = buildSearchService()
		if err != nil {
			return err
		}
	}

	session := rag.NewChatSession(llm, search, rag.ChatConfig{
		IndexName:   indexName,
		RAGEnabled:  ragEnabled,
		TopK:        topK,
		Temperature: temperature,
	})
	if err := session.Start(cmd.Context()); err != nil {
		return err
	}

	if ragEnabled {
		fmt.Printf("Chatting with %s, retrieving from %q.\n", model, indexName)
	} else {
		fmt.Printf("Chatting with %s (retrieval disabled).\n", model)
	}
	fmt.Println(`Type "exit" or "quit" to leave, "clear" to reset the conversation.`)

	historyFile := openChatHistory(viper.GetString("chat.history_file"))
	if historyFile != nil {
		defer historyFile.Close()
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if historyFile != nil {
			fmt.Fprintln(historyFile, input)
		}
		switch strings.ToLower(input) {
		case "exit", "quit":
			fmt.Println("Bye.")
			return nil
		case "clear":
			session.Clear()
			fmt.Println("Conversation cleared.")
			continue
		}

		// Ctrl-C cancels the answer, not the session.
		turnCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		fmt.Print("\nAssistant: ")
		result, err := session.Turn(turnCtx, input, func(fragment string) error {
			fmt.Print(fragment)
			return nil
		})
		stop()
		fmt.Println()

		switch {
		case errors.Is(err, context.Canceled):
			fmt.Println("(answer interrupted)")
		case err != nil:
			fmt.Printf("error: %v\n", err)
		case result.Retrieved > 0:
			fmt.Printf("(%d chunks retrieved)\n", result.Retrieved)
		}
	}
}

func openChatHistory(path string) *os.File {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Error(err, "failed to open chat history file", "path", path)
		return nil
	}
	return f
}
