// Package docs registers the OpenAPI document served at /swagger/doc.json.
// Regenerate the template with `swag init -g internal/transport/http/handlers.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "termsOfService": "http://swagger.io/terms/",
        "contact": {
            "name": "API Support",
            "url": "http://www.swagger.io/support",
            "email": "support@swagger.io"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {"get": {"tags": ["System"], "summary": "Health Check", "responses": {"200": {"description": "OK"}}}},
        "/auth": {"get": {"tags": ["Auth"], "summary": "Login", "security": [{"BasicAuth": []}], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/auth/refresh": {"get": {"tags": ["Auth"], "summary": "Refresh", "security": [{"BasicAuth": []}], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/auth/transient": {"get": {"tags": ["Auth"], "summary": "Transient login", "security": [{"BasicAuth": []}], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/auth/account": {"get": {"tags": ["Auth"], "summary": "Switch account", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/auth/user": {"get": {"tags": ["Auth"], "summary": "Impersonate user", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/roles": {"get": {"tags": ["Roles"], "summary": "List roles", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/roles/{id}": {"get": {"tags": ["Roles"], "summary": "Get role", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/roles/name/{name}": {"get": {"tags": ["Roles"], "summary": "Get role by name", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/users/signup": {"post": {"tags": ["Users"], "summary": "Sign up", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}},
        "/users": {
            "get": {"tags": ["Users"], "summary": "List users", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Users"], "summary": "Create user", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}}}
        },
        "/users/{id}": {
            "get": {"tags": ["Users"], "summary": "Get user", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {"tags": ["Users"], "summary": "Edit user", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}},
            "delete": {"tags": ["Users"], "summary": "Delete user", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}}}
        },
        "/users/name/{name}": {"get": {"tags": ["Users"], "summary": "Get user by name", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/users/password": {"put": {"tags": ["Users"], "summary": "Change password", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}}},
        "/users/{id}/password": {"put": {"tags": ["Users"], "summary": "Set user password", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}}},
        "/users/password/reset": {"post": {"tags": ["Users"], "summary": "Request password reset", "responses": {"202": {"description": "Accepted"}}}},
        "/users/{id}/verification": {"post": {"tags": ["Users"], "summary": "Resend verification", "security": [{"BearerAuth": []}], "responses": {"202": {"description": "Accepted"}}}},
        "/users/{id}/invitation": {"post": {"tags": ["Users"], "summary": "Resend invitation", "security": [{"BearerAuth": []}], "responses": {"202": {"description": "Accepted"}}}},
        "/accounts/signup": {"post": {"tags": ["Accounts"], "summary": "Account sign up", "responses": {"201": {"description": "Created"}}}},
        "/accounts": {
            "get": {"tags": ["Accounts"], "summary": "List accounts", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Accounts"], "summary": "Create account", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/accounts/{id}": {
            "get": {"tags": ["Accounts"], "summary": "Get account", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Accounts"], "summary": "Update account", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Accounts"], "summary": "Delete account", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}}
        },
        "/accounts/name/{name}": {"get": {"tags": ["Accounts"], "summary": "Get account by name", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/accounts/user/{username}": {"get": {"tags": ["Accounts"], "summary": "List user accounts", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/accounts/{id}/users": {"post": {"tags": ["Accounts"], "summary": "Add new account user", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}},
        "/accounts/{id}/users/{userID}": {
            "post": {"tags": ["Accounts"], "summary": "Add existing account user", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}},
            "put": {"tags": ["Accounts"], "summary": "Update account user roles", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}},
            "delete": {"tags": ["Accounts"], "summary": "Remove account user", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}}
        },
        "/accounts/{id}/users/name/{username}": {"post": {"tags": ["Accounts"], "summary": "Add existing account user by name", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}}},
        "/accounts/{id}/users/{userID}/invite": {"put": {"tags": ["Accounts"], "summary": "Re-send account invitation", "security": [{"BearerAuth": []}], "responses": {"202": {"description": "Accepted"}}}},
        "/tenants": {
            "get": {"tags": ["Tenant"], "summary": "List Tenants", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Tenant"], "summary": "Create Tenant", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/tenants/name/{name}": {
            "get": {"tags": ["Tenant"], "summary": "Get Tenant By Name", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/tenants/{id}": {
            "get": {"tags": ["Tenant"], "summary": "Get Tenant", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Tenant"], "summary": "Update Tenant", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        }
    },
    "securityDefinitions": {
        "BasicAuth": {"type": "basic"},
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "OpenTrusty Tenant Management API",
	Description:      "Multi-tenant user, account and role management",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// Read renders the registered document
func Read() (string, error) {
	return swag.ReadDoc(SwaggerInfo.InstanceName())
}
