package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"aichat/agent"
	"aichat/config"
	"aichat/controller"
	"aichat/mcp"
	"aichat/model"
	"aichat/storage"
)

const Version = "v0.1.0"

// cliListener prints streamed fragments straight to stdout.
type cliListener struct {
	fragments int
}

func (l *cliListener) OnFragment(chatID, fragment string) {
	l.fragments++
	fmt.Print(fragment)
}

func (l *cliListener) OnMessage(msg model.Message) {}

func main() {
	modelFlag := flag.String("model", "", "model to chat with (overrides default_model)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.InitDebugLog(cfg.DataDir())

	modelName := cfg.DefaultModel
	if *modelFlag != "" {
		modelName = *modelFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	servers, err := config.LoadToolServers(cfg.ToolServersFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load tool servers: %v\n", err)
		os.Exit(1)
	}

	connector := mcp.NewConnector(servers)
	for name, connErr := range connector.Connect(ctx) {
		fmt.Fprintf(os.Stderr, "Warning: tool server %q unavailable: %v\n", name, connErr)
	}
	defer connector.Close()

	store, err := storage.Open(cfg.DataDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open chat storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	factory := agent.NewFactory(cfg, connector)
	listener := &cliListener{}
	ctrl := controller.New(store, factory, listener)

	chat, err := store.CreateChat("New chat")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create chat: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("aichat %s (model %s)", Version, modelName)
	if n := len(connector.ConnectedServers()); n > 0 {
		fmt.Printf(", %d tool server(s): %s", n, strings.Join(connector.ConnectedServers(), ", "))
	}
	fmt.Println()
	fmt.Println("Commands: /models /tools /attach <path> /new /quit")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(line, ctrl, factory, connector, store, &chat); quit {
				break
			}
			continue
		}

		if _, err := ctrl.SubmitUserMessage(chat.ID, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		listener.fragments = 0
		reply, err := ctrl.RequestResponse(ctx, chat.ID, modelName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if reply != nil && listener.fragments == 0 {
			// Diagnostic replies never stream; print them whole.
			fmt.Print(reply.DisplayContent)
		}
		fmt.Println()
	}
}

func runCommand(line string, ctrl *controller.Controller, factory *agent.Factory, connector *mcp.Connector, store *storage.Store, chat **storage.Chat) bool {
	fields := strings.Fields(line)

	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/models":
		for _, m := range factory.Models() {
			fmt.Println("  " + m)
		}

	case "/tools":
		tools := connector.Tools()
		if len(tools) == 0 {
			fmt.Println("No tools available.")
		}
		for _, tool := range tools {
			fmt.Printf("  %s: %s\n", tool.Name, tool.Description)
		}

	case "/attach":
		if len(fields) < 2 {
			fmt.Println("Usage: /attach <path>")
			return false
		}
		msg, err := ctrl.AttachFile((*chat).ID, fields[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		fmt.Println(msg.DisplayContent)

	case "/new":
		next, err := store.CreateChat("New chat")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		*chat = next
		fmt.Println("Started a new chat.")

	default:
		fmt.Printf("Unknown command: %s\n", fields[0])
	}

	return false
}
