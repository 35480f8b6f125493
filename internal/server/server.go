package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/auth"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/database"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/service"
)

type Server struct {
	port        int
	todoService service.TodoService
	db          database.Service // nil for the memory and file backends
	resolver    *auth.Resolver
}

func NewServer(port int, todoService service.TodoService, dbService database.Service, resolver *auth.Resolver) *http.Server {
	appServer := &Server{
		port:        port,
		todoService: todoService,
		db:          dbService,
		resolver:    resolver,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", appServer.port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
