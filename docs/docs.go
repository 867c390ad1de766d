// Package docs registers the OpenAPI document served at /swagger/*.
//
// Regenerate with: swag init -g cmd/api/main.go -o docs
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
        "/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handler.Response"}}
                }
            }
        },
        "/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handler.Response"}}
                }
            }
        },
        "/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Logout",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.Response"}}
                }
            }
        },
        "/account": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Get the current account",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.Response"}}
                }
            }
        },
        "/predict": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data", "application/json"],
                "produces": ["application/json"],
                "tags": ["predictions"],
                "summary": "Classify a handwritten character image",
                "parameters": [
                    {"type": "file", "description": "JPEG or PNG image", "name": "image", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/handler.Response"}}
                }
            }
        },
        "/predict/histories": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["predictions"],
                "summary": "List prediction histories",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Response"}}
                }
            }
        },
        "/v2/predict": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["predictions"],
                "summary": "Submit a pre-labeled prediction",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.labeledPredictionRequest"}}
                ],
                "responses": {
                    "200": {"description": "updated or kept", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "201": {"description": "created", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Response"}}
                }
            }
        },
        "/progress": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["progress"],
                "summary": "Get practice progress",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Response"}}
                }
            }
        }
    },
    "definitions": {
        "handler.Response": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "success"},
                "message": {"type": "string"},
                "data": {}
            }
        },
        "handler.registerRequest": {
            "type": "object",
            "required": ["email", "password", "confirmPassword", "fullName"],
            "properties": {
                "email": {"type": "string", "example": "kana@example.com"},
                "password": {"type": "string", "minLength": 6, "example": "secret123"},
                "confirmPassword": {"type": "string", "example": "secret123"},
                "fullName": {"type": "string", "maxLength": 100, "example": "Kana Tanaka"}
            }
        },
        "handler.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "example": "kana@example.com"},
                "password": {"type": "string", "example": "secret123"}
            }
        },
        "handler.labeledPredictionRequest": {
            "type": "object",
            "required": ["category", "character", "confidenceScore"],
            "properties": {
                "category": {"type": "string", "enum": ["hiragana", "katakana", "kanji"], "example": "kanji"},
                "character": {"type": "string", "example": "七"},
                "confidenceScore": {"type": "number", "minimum": 0, "maximum": 100, "example": 87.5},
                "result": {"type": "string"},
                "suggestion": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Session token as \"Bearer <token>\". The token cookie is accepted as well."
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Kakitori API",
	Description:      "Handwritten character recognition and practice progress tracking.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
