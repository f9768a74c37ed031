// Package docs registers the OpenAPI document served under /swagger.
// Regenerate the full document with `swag init -g cmd/app/main.go -o internal/docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a user",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/LoginResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Sign in with phone number and password",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/LoginResponse"}}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}}}
            }
        },
        "/wallets/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["wallets"],
                "summary": "List the caller's wallets",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Wallet"}}}}
            }
        },
        "/transfers": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["transfers"],
                "summary": "Send money to another wallet",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CreateTransferRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/Transaction"}}, "402": {"description": "Insufficient balance", "schema": {"$ref": "#/definitions/ErrorResponse"}}}
            }
        },
        "/external/push": {
            "post": {
                "security": [{"AccessKey": []}],
                "tags": ["external"],
                "summary": "Push money from the enterprise wallet to a user",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/PushRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/Transaction"}}}
            }
        },
        "/external/pull": {
            "post": {
                "security": [{"AccessKey": []}],
                "tags": ["external"],
                "summary": "Pull money from a user under an approved grant",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/PullRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/Transaction"}}}
            }
        }
    },
    "definitions": {
        "ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}}},
        "RegisterRequest": {"type": "object", "required": ["name", "email", "phone_number", "password"], "properties": {"name": {"type": "string"}, "email": {"type": "string"}, "phone_number": {"type": "string"}, "password": {"type": "string", "minLength": 8}}},
        "LoginRequest": {"type": "object", "required": ["phone_number", "password"], "properties": {"phone_number": {"type": "string"}, "password": {"type": "string"}}},
        "LoginResponse": {"type": "object", "properties": {"access_token": {"type": "string"}, "user": {"type": "object"}}},
        "Wallet": {"type": "object", "properties": {"id": {"type": "string"}, "wallet_type": {"type": "string"}, "owner_id": {"type": "string"}, "balance": {"type": "integer"}, "frozen_amount": {"type": "integer"}, "is_restricted": {"type": "boolean"}, "currency": {"type": "string"}}},
        "Transaction": {"type": "object", "properties": {"id": {"type": "string"}, "from_wallet": {"type": "string"}, "to_wallet": {"type": "string"}, "amount": {"type": "integer"}, "status": {"type": "string"}, "remarks": {"type": "string"}}},
        "CreateTransferRequest": {"type": "object", "required": ["amount"], "properties": {"from_wallet": {"type": "string"}, "to_wallet": {"type": "string"}, "phone_number": {"type": "string"}, "amount": {"type": "integer", "minimum": 10}, "remarks": {"type": "string"}}},
        "PushRequest": {"type": "object", "required": ["phone_number", "amount"], "properties": {"phone_number": {"type": "string"}, "amount": {"type": "integer", "minimum": 1}, "remarks": {"type": "string"}}},
        "PullRequest": {"type": "object", "required": ["user_grant", "amount"], "properties": {"user_grant": {"type": "string"}, "amount": {"type": "integer", "minimum": 1}, "remarks": {"type": "string"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "AccessKey": {"type": "apiKey", "name": "X-Access-Id", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "MyMe Wallet API",
	Description:      "Mobile money wallets, transfers, disputes and enterprise payments.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
