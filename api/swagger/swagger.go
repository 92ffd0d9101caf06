package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Selection Drive API",
        "description": "Applicant lifecycle tracking for staged selection drives",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Admin authentication"},
        {"name": "Admin", "description": "Operator account management"},
        {"name": "Applicants", "description": "Applicant lifecycle and reporting"},
        {"name": "Backups", "description": "Applicant snapshot downloads"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/api/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate an admin and issue a token",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/admin/create": {
            "post": {
                "tags": ["Admin"],
                "summary": "Create an admin account",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Username taken"}
                }
            }
        },
        "/api/admin/change-password": {
            "post": {
                "tags": ["Admin"],
                "summary": "Change an admin's password",
                "responses": {
                    "200": {"description": "Updated"},
                    "404": {"description": "Admin not found"}
                }
            }
        },
        "/api/applicants/lists": {
            "get": {
                "tags": ["Applicants"],
                "summary": "List selection stages and their rounds",
                "responses": {
                    "200": {"description": "Stage catalog"}
                }
            }
        },
        "/api/applicants": {
            "post": {
                "tags": ["Applicants"],
                "summary": "Register an applicant",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation failed"},
                    "409": {"description": "Unique code already in stage"}
                }
            }
        },
        "/api/applicants/search": {
            "get": {
                "tags": ["Applicants"],
                "summary": "Search applicants",
                "responses": {
                    "200": {"description": "Matching applicants, newest first"}
                }
            }
        },
        "/api/applicants/{id}": {
            "put": {
                "tags": ["Applicants"],
                "summary": "Partially update an applicant",
                "responses": {
                    "200": {"description": "Updated"},
                    "404": {"description": "Not found"},
                    "409": {"description": "Unique code already in stage"}
                }
            },
            "delete": {
                "tags": ["Applicants"],
                "summary": "Delete an applicant",
                "responses": {
                    "200": {"description": "Deleted"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/applicants/{id}/promote": {
            "put": {
                "tags": ["Applicants"],
                "summary": "Promote an applicant to the next stage",
                "responses": {
                    "200": {"description": "Promoted"},
                    "404": {"description": "Not found"},
                    "409": {"description": "Cannot promote further"}
                }
            }
        },
        "/api/applicants/{id}/audit": {
            "get": {
                "tags": ["Applicants"],
                "summary": "Get an applicant's audit trail",
                "responses": {
                    "200": {"description": "Audit entries oldest first"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/applicants/export": {
            "get": {
                "tags": ["Applicants"],
                "summary": "Export applicants as CSV or PDF",
                "responses": {
                    "200": {"description": "Rendered report"}
                }
            }
        },
        "/api/backups": {
            "get": {
                "tags": ["Backups"],
                "summary": "List backup snapshots with signed download URLs",
                "responses": {
                    "200": {"description": "Snapshots newest first"}
                }
            }
        },
        "/api/backups/download/{token}": {
            "get": {
                "tags": ["Backups"],
                "summary": "Download a backup snapshot via signed token",
                "responses": {
                    "200": {"description": "Snapshot contents"},
                    "401": {"description": "Invalid token"}
                }
            }
        }
    },
    "definitions": {
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
                "pagination": {"type": "object"},
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
