package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// allowedCollections are the entity kinds the server stores. Requests for
// anything else are rejected before touching the store.
var allowedCollections = map[string]bool{
	"transactions": true,
	"meals":        true,
	"ideas":        true,
}

// protectedFields are stripped from every incoming patch. Identity and
// ownership never change after creation.
var protectedFields = []string{"id", "created_at", "user_id"}

const maxBodyBytes = 1 << 20

// Server is the authoritative sync server.
type Server struct {
	store    Store
	accounts Accounts
	issuer   *TokenIssuer
	logger   *log.Logger
	hub      *hub
}

// New assembles a server over the given store pair. A nil logger falls
// back to stderr.
func New(store Store, accounts Accounts, issuer *TokenIssuer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "[server] ", log.LstdFlags)
	}
	return &Server{
		store:    store,
		accounts: accounts,
		issuer:   issuer,
		logger:   logger,
		hub:      newHub(),
	}
}

// Router builds the HTTP routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/v1/auth/register", s.handleRegister)
	r.Post("/v1/auth/login", s.handleLogin)

	r.Route("/v1/users/{userID}", func(r chi.Router) {
		r.Use(s.issuer.RequireAuth)
		r.Use(requireSelf)
		r.Route("/{collection}", func(r chi.Router) {
			r.Use(checkCollection)
			r.Get("/", s.handleList)
			r.Get("/watch", s.handleWatch)
			r.Put("/{docID}", s.handlePut)
			r.Patch("/{docID}", s.handlePatch)
			r.Delete("/{docID}", s.handleDelete)
		})
	})

	return r
}

func checkCollection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowedCollections[chi.URLParam(r, "collection")] {
			http.Error(w, "unknown collection", http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string  `json:"token"`
	User  Account `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeBody(r, &creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))
	if creds.Email == "" || len(creds.Password) < 6 {
		http.Error(w, "email and a password of at least 6 characters are required", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		s.internalError(w, "failed to hash password", err)
		return
	}

	account := Account{
		ID:           uuid.NewString(),
		Email:        creds.Email,
		Name:         strings.TrimSpace(creds.Name),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.accounts.Create(r.Context(), account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		s.internalError(w, "failed to create account", err)
		return
	}

	s.respondWithToken(w, account, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeBody(r, &creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))

	account, err := s.accounts.FindByEmail(r.Context(), creds.Email)
	if err != nil {
		// same answer for unknown email and wrong password
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(creds.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	s.respondWithToken(w, account, http.StatusOK)
}

func (s *Server) respondWithToken(w http.ResponseWriter, account Account, status int) {
	token, err := s.issuer.Sign(account)
	if err != nil {
		s.internalError(w, "failed to issue token", err)
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: account})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	collection := chi.URLParam(r, "collection")

	payload, err := s.renderList(r.Context(), userID, collection)
	if err != nil {
		s.internalError(w, "failed to list documents", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	collection := chi.URLParam(r, "collection")
	docID := chi.URLParam(r, "docID")

	var doc map[string]any
	if err := decodeBody(r, &doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// the path owns the identity
	doc["id"] = docID

	payload, err := json.Marshal(doc)
	if err != nil {
		http.Error(w, "invalid document", http.StatusBadRequest)
		return
	}
	if err := s.store.Put(r.Context(), userID, collection, docID, payload); err != nil {
		s.internalError(w, "failed to store document", err)
		return
	}

	s.broadcastList(r.Context(), userID, collection)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	collection := chi.URLParam(r, "collection")
	docID := chi.URLParam(r, "docID")

	var fields map[string]any
	if err := decodeBody(r, &fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, f := range protectedFields {
		delete(fields, f)
	}
	if len(fields) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.store.Patch(r.Context(), userID, collection, docID, fields); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		s.internalError(w, "failed to patch document", err)
		return
	}

	s.broadcastList(r.Context(), userID, collection)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	collection := chi.URLParam(r, "collection")
	docID := chi.URLParam(r, "docID")

	if err := s.store.Delete(r.Context(), userID, collection, docID); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		s.internalError(w, "failed to delete document", err)
		return
	}

	s.broadcastList(r.Context(), userID, collection)
	w.WriteHeader(http.StatusNoContent)
}

// handleWatch upgrades to a websocket, sends the current record set, and
// forwards every subsequent broadcast until the client hangs up.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	collection := chi.URLParam(r, "collection")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("websocket accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := conn.CloseRead(r.Context())

	// Subscribe before rendering the initial snapshot. A mutation landing
	// between the two is then delivered twice (once in the snapshot, once
	// via the hub) instead of never; duplicates are harmless because every
	// payload is the complete record set.
	ch, cancel := s.hub.subscribe(partitionKey(userID, collection))
	defer cancel()

	initial, err := s.renderList(ctx, userID, collection)
	if err != nil {
		s.logger.Printf("failed to render initial %s list for %s: %v", collection, userID, err)
		conn.Close(websocket.StatusInternalError, "failed to load records")
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, initial); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case payload := <-ch:
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return
			}
		}
	}
}

// broadcastList renders the partition's full record set and fans it out to
// every watch connection.
func (s *Server) broadcastList(ctx context.Context, userID, collection string) {
	payload, err := s.renderList(ctx, userID, collection)
	if err != nil {
		s.logger.Printf("failed to render %s list for %s: %v", collection, userID, err)
		return
	}
	s.hub.broadcast(partitionKey(userID, collection), payload)
}

func (s *Server) renderList(ctx context.Context, userID, collection string) ([]byte, error) {
	docs, err := s.store.List(ctx, userID, collection)
	if err != nil {
		return nil, err
	}
	sortDocuments(docs)
	if docs == nil {
		docs = []json.RawMessage{}
	}
	return json.Marshal(docs)
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Printf("%s: %v", msg, err)
	http.Error(w, msg, http.StatusInternalServerError)
}

func decodeBody(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
