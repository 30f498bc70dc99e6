package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Local fake agent for bridge development.
// Run: go run scripts/dev-agent.go
//
// Speaks the duplex frame protocol on /ws (metadata, streamed agent
// responses, pings, the occasional save_joke tool call) and serves the
// chatWithAgent callable on /chatWithAgent.

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[+] duplex client connected (agent_id=%s)", r.URL.Query().Get("agent_id"))

	// Metadata is deliberately delayed so clients exercise their
	// out-of-order buffering.
	go func() {
		time.Sleep(200 * time.Millisecond)
		conn.WriteJSON(map[string]interface{}{
			"type": "conversation_metadata",
			"conversation_metadata_event": map[string]string{
				"conversation_id": fmt.Sprintf("dev_conv_%d", time.Now().Unix()),
			},
		})
	}()

	go pingLoop(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[-] duplex client gone: %v", err)
			return
		}

		var frame map[string]interface{}
		if json.Unmarshal(data, &frame) != nil {
			continue
		}

		switch frame["type"] {
		case "conversation_initiation":
			log.Printf("[init] %s", string(data))
		case "user_message":
			text := ""
			if ev, ok := frame["user_message_event"].(map[string]interface{}); ok {
				text, _ = ev["text"].(string)
			}
			go respond(conn, text)
		case "pong":
			// keepalive answered, nothing to do
		case "client_tool_result":
			log.Printf("[tool result] %s", string(data))
		}
	}
}

// respond streams a canned joke as partials, then finalizes, then asks the
// client to save it.
func respond(conn *websocket.Conn, userText string) {
	joke := "Why don't scientists trust atoms? Because they make up everything."
	words := strings.Fields(joke)

	for i := range words {
		conn.WriteJSON(map[string]interface{}{
			"type": "agent_response",
			"agent_response_event": map[string]interface{}{
				"agent_response": strings.Join(words[:i+1], " "),
				"is_final":       false,
			},
		})
		time.Sleep(80 * time.Millisecond)
	}

	conn.WriteJSON(map[string]interface{}{
		"type": "agent_response",
		"agent_response_event": map[string]interface{}{
			"agent_response": joke,
			"is_final":       true,
		},
	})

	if strings.Contains(strings.ToLower(userText), "save") {
		conn.WriteJSON(map[string]interface{}{
			"type": "client_tool_call",
			"client_tool_call": map[string]interface{}{
				"tool_name":    "save_joke",
				"tool_call_id": fmt.Sprintf("tc_%d", time.Now().UnixNano()),
				"parameters": map[string]interface{}{
					"content": joke,
					"tags":    "science, one-liner",
				},
			},
		})
	}
}

func pingLoop(conn *websocket.Conn) {
	var eventID int64
	for {
		time.Sleep(10 * time.Second)
		eventID++
		err := conn.WriteJSON(map[string]interface{}{
			"type":       "ping",
			"ping_event": map[string]int64{"event_id": eventID},
		})
		if err != nil {
			return
		}
	}
}

func handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Message        string  `json:"message"`
		ConversationID *string `json:"conversationId"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	convID := "dev_conv_1"
	if req.ConversationID != nil && *req.ConversationID != "" {
		convID = *req.ConversationID
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"conversationId": convID,
		"finalResponse":  fmt.Sprintf("Here's one about %q: I told my wife she should embrace her mistakes. She gave me a hug.", req.Message),
	})
	log.Printf("[chat] conv=%s message=%q", convID, req.Message)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func main() {
	http.HandleFunc("/ws", handleWS)
	http.HandleFunc("/chatWithAgent", handleChat)
	http.HandleFunc("/health", handleHealth)

	addr := ":8899"
	log.Printf("Dev agent starting on http://localhost%s", addr)
	log.Printf("  Duplex:  ws://localhost%s/ws", addr)
	log.Printf("  Chat:    http://localhost%s/chatWithAgent", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
