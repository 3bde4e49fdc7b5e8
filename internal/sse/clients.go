// Package sse provides Server-Sent Events client management for live page reloads.
package sse

import (
	"sync"

	"github.com/debemdeboas/postboard/internal/model"
)

// AllPosts subscribes a client to changes of any post.
const AllPosts model.PostID = 0

type Client struct {
	Msg    chan string
	PostID model.PostID
}

func NewClient(postID model.PostID) *Client {
	return &Client{
		Msg:    make(chan string, 1),
		PostID: postID,
	}
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg to clients watching postID or all posts. Slow clients miss the
// message instead of blocking the sender.
func (s *SSEClients) Broadcast(postID model.PostID, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.PostID != AllPosts && client.PostID != postID {
			continue
		}
		select {
		case client.Msg <- msg:
		default:
		}
	}
}
