package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable Scheduler API",
        "description": "Weekly class schedule generation with greedy and genetic search",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Scheduler", "description": "Schedule generation, history and export"},
        {"name": "Jobs", "description": "Queued schedule generation"},
        {"name": "System", "description": "Health and metrics"}
    ],
    "paths": {
        "/schedules/generate": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Generate a weekly schedule",
                "description": "Runs the greedy or genetic scheduler. With persist=false the result is kept as a proposal that can be saved later.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}},
                    {"name": "persist", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "Proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Too many subjects", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/proposals/{id}": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Store a previewed schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/validate": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Check a schedule request without generating",
                "security": [{}, {"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules": {
            "get": {
                "tags": ["Scheduler"],
                "summary": "List stored schedules",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "algorithm", "in": "query", "type": "string", "enum": ["greedy", "genetic"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/latest": {
            "get": {
                "tags": ["Scheduler"],
                "summary": "Most recently stored schedule",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Nothing stored yet", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "get": {
                "tags": ["Scheduler"],
                "summary": "Get a stored schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Scheduler"],
                "summary": "Delete a stored schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/export": {
            "get": {
                "tags": ["Scheduler"],
                "summary": "Download a stored schedule",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "view", "in": "query", "type": "string", "enum": ["grid", "list"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/jobs": {
            "post": {
                "tags": ["Jobs"],
                "summary": "Queue a schedule generation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Queue disabled or full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/jobs/{id}": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Poll a queued schedule generation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["System"],
                "summary": "Request, cache and scheduler counters",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "TimeWindow": {
            "type": "object",
            "required": ["day", "start", "end"],
            "properties": {
                "day": {"type": "string", "example": "MONDAY"},
                "start": {"type": "string", "example": "09:00"},
                "end": {"type": "string", "example": "12:00"}
            }
        },
        "Preference": {
            "type": "object",
            "required": ["start", "end", "priority"],
            "properties": {
                "day": {"type": "string"},
                "start": {"type": "string"},
                "end": {"type": "string"},
                "priority": {"type": "integer", "minimum": 1, "maximum": 5}
            }
        },
        "Faculty": {
            "type": "object",
            "required": ["id"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "availability": {"type": "array", "items": {"$ref": "#/definitions/TimeWindow"}},
                "preferredSlots": {"type": "array", "items": {"$ref": "#/definitions/Preference"}}
            }
        },
        "Subject": {
            "type": "object",
            "required": ["name", "durationMinutes", "eligibleFaculty"],
            "properties": {
                "name": {"type": "string"},
                "durationMinutes": {"type": "integer"},
                "sessionsPerWeek": {"type": "integer"},
                "isSpecial": {"type": "boolean"},
                "requiresConsecutive": {"type": "boolean"},
                "eligibleFaculty": {"type": "array", "items": {"$ref": "#/definitions/Faculty"}},
                "preferredSlots": {"type": "array", "items": {"$ref": "#/definitions/Preference"}}
            }
        },
        "Break": {
            "type": "object",
            "required": ["start", "end"],
            "properties": {
                "day": {"type": "string", "example": "ALL_DAYS"},
                "start": {"type": "string"},
                "end": {"type": "string"}
            }
        },
        "GenerateScheduleRequest": {
            "type": "object",
            "required": ["subjects", "rooms", "collegeTime"],
            "properties": {
                "subjects": {"type": "array", "items": {"$ref": "#/definitions/Subject"}},
                "breaks": {"type": "array", "items": {"$ref": "#/definitions/Break"}},
                "collegeTime": {
                    "type": "object",
                    "properties": {
                        "start": {"type": "string", "example": "09:00"},
                        "end": {"type": "string", "example": "17:00"}
                    }
                },
                "rooms": {"type": "array", "items": {"type": "string"}},
                "workingDays": {"type": "array", "items": {"type": "string"}},
                "useGenetic": {"type": "boolean"},
                "seed": {"type": "integer"},
                "fillPlaceholders": {"type": "boolean"},
                "countPlaceholders": {"type": "boolean"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
