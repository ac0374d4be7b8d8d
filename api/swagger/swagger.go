package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "FAAS Records API",
        "description": "Field Appraisal and Assessment Sheet record management for the municipal assessor's office",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Records", "description": "FAAS record lifecycle"},
        {"name": "Audit", "description": "Per-record audit trail"},
        {"name": "Dashboard", "description": "Aggregate statistics"},
        {"name": "Events", "description": "Lifecycle event stream"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Describe the authenticated user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/records": {
            "get": {
                "tags": ["Records"],
                "summary": "List FAAS records",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "Comma-separated statuses"},
                    {"name": "encoderId", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Records"],
                "summary": "Create a draft record",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/records/{id}": {
            "get": {
                "tags": ["Records"],
                "summary": "Get one record",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Records"],
                "summary": "Update the record payload; clears generated files",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Record not editable"}
                }
            },
            "delete": {
                "tags": ["Records"],
                "summary": "Soft-delete the record",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/records/{id}/submit": {
            "post": {
                "tags": ["Records"],
                "summary": "Submit a draft or rejected record for review",
                "description": "Runs document generation inline. Generation failure never fails the submission.",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Record not submittable"}
                }
            }
        },
        "/records/{id}/approve": {
            "post": {
                "tags": ["Records"],
                "summary": "Approve a pending record",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Record not pending"}
                }
            }
        },
        "/records/{id}/reject": {
            "post": {
                "tags": ["Records"],
                "summary": "Reject a pending record with a reason",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing reason"},
                    "409": {"description": "Record not pending"}
                }
            }
        },
        "/records/{id}/cancel-decision": {
            "post": {
                "tags": ["Records"],
                "summary": "Revert an approval or rejection back to pending",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Reverted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Record has no decision"}
                }
            }
        },
        "/records/{id}/generate": {
            "post": {
                "tags": ["Records"],
                "summary": "Queue document regeneration",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "202": {"description": "Queued"}
                }
            }
        },
        "/records/{id}/files": {
            "get": {
                "tags": ["Records"],
                "summary": "List signed download links for generated files",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Records"],
                "summary": "Delete the record's generated files",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/records/{id}/audit": {
            "get": {
                "tags": ["Audit"],
                "summary": "Audit trail for one record",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Audit"],
                "summary": "Purge the record's audit trail (admin)",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Purged"}
                }
            }
        },
        "/records/{id}/audit/export": {
            "get": {
                "tags": ["Audit"],
                "summary": "Export the audit trail as CSV or PDF",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/dashboard/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Record counts by lifecycle status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DashboardStats"}}
                }
            }
        },
        "/events": {
            "get": {
                "tags": ["Events"],
                "summary": "Subscribe to record lifecycle events (SSE)",
                "produces": ["text/event-stream"],
                "responses": {
                    "200": {"description": "Event stream"}
                }
            }
        },
        "/files/download": {
            "get": {
                "tags": ["Records"],
                "summary": "Download a generated file by signed token",
                "parameters": [{"name": "token", "in": "query", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "File download"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RecordPayload": {
            "type": "object",
            "properties": {
                "arf_no": {"type": "string"},
                "pin": {"type": "string"},
                "oct_tct_no": {"type": "string"},
                "cln": {"type": "string"},
                "owner_name": {"type": "string"},
                "owner_address": {"type": "string"},
                "administrator_name": {"type": "string"},
                "administrator_address": {"type": "string"},
                "property_location": {"type": "string"},
                "property_barangay": {"type": "string"},
                "property_municipality": {"type": "string"},
                "property_province": {"type": "string"},
                "north_boundary": {"type": "string"},
                "south_boundary": {"type": "string"},
                "east_boundary": {"type": "string"},
                "west_boundary": {"type": "string"},
                "previous_td_no": {"type": "string"},
                "previous_owner": {"type": "string"},
                "effectivity_year": {"type": "string"},
                "taxability": {"type": "string"},
                "previous_av_land": {"type": "number"},
                "previous_av_improvements": {"type": "number"},
                "previous_total_av": {"type": "number"},
                "memoranda_code": {"type": "string"},
                "memoranda_paragraph": {"type": "string"},
                "land_appraisals": {"type": "array", "items": {"type": "object"}},
                "improvements": {"type": "array", "items": {"type": "object"}},
                "market_values": {"type": "array", "items": {"type": "object"}},
                "assessments": {"type": "array", "items": {"type": "object"}}
            },
            "required": ["arf_no", "owner_name"]
        },
        "RejectRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            },
            "required": ["reason"]
        },
        "DashboardStats": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "draft": {"type": "integer"},
                "pending": {"type": "integer"},
                "approved": {"type": "integer"},
                "rejected": {"type": "integer"}
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
