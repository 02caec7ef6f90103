package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bookswap/internal/auth"
	"bookswap/internal/chat"
)

// Drives pairs of pre-seeded users through the live channel: join the room,
// spam message:send, verify acks, and fall back to the REST path when an ack
// doesn't arrive in time.

var (
	baseURL   = flag.String("base", "http://localhost:8080", "server base URL")
	wsURL     = flag.String("ws", "ws://localhost:8080/ws", "websocket URL")
	jwtSecret = flag.String("secret", "", "JWT secret shared with the server")
	pairs     = flag.Int("pairs", 25, "user pairs to run")
	msgCount  = flag.Int("messages", 20, "messages per user")
	firstID   = flag.Int64("first-id", 1, "id of the first seeded user; pairs use consecutive ids")
)

func main() {
	flag.Parse()
	if *jwtSecret == "" {
		log.Fatal("-secret is required")
	}

	log.Printf("starting load test: %d pairs, %d messages each", *pairs, *msgCount)
	var wg sync.WaitGroup

	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func(pair int) {
			defer wg.Done()
			runPair(*firstID + int64(pair*2))
		}(i)
	}

	wg.Wait()
	log.Println("load test complete")
}

func runPair(idA int64) {
	idB := idA + 1

	tokenA, err := auth.GenerateToken(*jwtSecret, idA, fmt.Sprintf("loadtest_%d", idA))
	if err != nil {
		log.Printf("minting token for %d: %v", idA, err)
		return
	}
	tokenB, err := auth.GenerateToken(*jwtSecret, idB, fmt.Sprintf("loadtest_%d", idB))
	if err != nil {
		log.Printf("minting token for %d: %v", idB, err)
		return
	}

	convID := startConversation(tokenA, idB)
	if convID == 0 {
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamChat(&wsWg, tokenA, convID, idA)
	go spamChat(&wsWg, tokenB, convID, idB)
	wsWg.Wait()
}

func startConversation(token string, participantID int64) int64 {
	body, _ := json.Marshal(map[string]int64{"participant_id": participantID})
	req, _ := http.NewRequest("POST", *baseURL+"/api/chats/start", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		log.Printf("start conversation failed: %v", err)
		return 0
	}
	defer resp.Body.Close()

	var data struct {
		Conversation struct {
			ID int64 `json:"id"`
		} `json:"conversation"`
	}
	json.NewDecoder(resp.Body).Decode(&data)
	return data.Conversation.ID
}

func spamChat(wg *sync.WaitGroup, token string, convID, userID int64) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", *wsURL, token), nil)
	if err != nil {
		log.Printf("ws connect failed [%d]: %v", userID, err)
		return
	}
	defer conn.Close()

	conn.WriteJSON(chat.Event{Type: chat.EventJoin, ConversationID: convID})

	acked := 0
	fellBack := 0
	for i := 0; i < *msgCount; i++ {
		ev := chat.Event{
			Type:           chat.EventSend,
			ID:             fmt.Sprintf("%d-%d", userID, i),
			ConversationID: convID,
			Text:           fmt.Sprintf("load test message %d from %d", i, userID),
		}
		if err := conn.WriteJSON(ev); err != nil || !awaitAck(conn, ev.ID) {
			// No ack on the live channel: the message must not be lost.
			if restSend(token, convID, ev.Text) {
				fellBack++
			}
			continue
		}
		acked++

		// Small sleep to avoid an instant localhost bottleneck.
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("user %d finished: %d acked, %d via fallback", userID, acked, fellBack)
}

// awaitAck reads frames until the matching ack arrives or the deadline hits.
// Broadcast frames for other senders are expected and skipped.
func awaitAck(conn *websocket.Conn, ackID string) bool {
	deadline := time.Now().Add(5 * time.Second)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var frame struct {
			Type string `json:"type"`
			ID   string `json:"id"`
			OK   bool   `json:"ok"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return false
		}
		if frame.Type == chat.EventAck && frame.ID == ackID {
			return frame.OK
		}
	}
	return false
}

func restSend(token string, convID int64, text string) bool {
	body, _ := json.Marshal(map[string]string{"text": text})
	url := fmt.Sprintf("%s/api/chats/%d/messages", *baseURL, convID)
	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusCreated
}
